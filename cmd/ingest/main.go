package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/app"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/ingest"
	"github.com/casevault/discovery-backend/internal/platform/gcp"
)

// textExtractor treats production files as plain text, with form feeds as
// page breaks. Scanned formats go through a real OCR extractor instead.
type textExtractor struct{}

func (textExtractor) Extract(ctx context.Context, fileName string, fileBytes []byte) (string, []int, error) {
	if len(bytes.TrimSpace(fileBytes)) == 0 {
		return "", nil, fmt.Errorf("file %s is empty", fileName)
	}
	text := strings.ReplaceAll(string(fileBytes), "\r\n", "\n")

	// Boundaries are the offsets where pages 2..n start; page 1 starts at 0
	// and is implied.
	var pages []int
	offset := 0
	for {
		i := strings.IndexByte(text[offset:], '\f')
		if i < 0 {
			break
		}
		offset += i + 1
		pages = append(pages, offset)
	}
	text = strings.ReplaceAll(text, "\f", "\n")
	return text, pages, nil
}

func main() {
	var (
		caseIDRaw   string
		dir         string
		batch       string
		party       string
		designation string
		upload      bool
	)
	flag.StringVar(&caseIDRaw, "case", "", "case id to ingest into (required)")
	flag.StringVar(&dir, "dir", "", "directory of produced files (required)")
	flag.StringVar(&batch, "batch", "", "production batch label")
	flag.StringVar(&party, "party", "", "producing party")
	flag.StringVar(&designation, "designation", "", "confidentiality designation (confidential, attorneys_eyes_only, highly_confidential)")
	flag.BoolVar(&upload, "upload", false, "archive originals to object storage before ingesting")
	flag.Parse()

	caseID, err := uuid.Parse(strings.TrimSpace(caseIDRaw))
	if err != nil || caseID == uuid.Nil {
		fmt.Println("a valid -case id is required")
		os.Exit(2)
	}
	if strings.TrimSpace(dir) == "" {
		fmt.Println("-dir is required")
		os.Exit(2)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	pipeline, err := application.NewPipeline(textExtractor{})
	if err != nil {
		fmt.Printf("init pipeline: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("read dir: %v\n", err)
		os.Exit(1)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var docs []hierarchy.CreateDocumentInput
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("skip %s: %v\n", entry.Name(), err)
			continue
		}

		storageKey := ""
		if upload && application.Clients.Archive != nil {
			storageKey = gcp.OriginalStorageKey(caseID, batch, entry.Name())
			if err := application.Clients.Archive.UploadOriginal(ctx, storageKey, bytes.NewReader(raw)); err != nil {
				fmt.Printf("archive %s: %v\n", entry.Name(), err)
				os.Exit(1)
			}
		}

		docs = append(docs, hierarchy.CreateDocumentInput{
			FileBytes:                  raw,
			FileName:                   entry.Name(),
			StorageKey:                 storageKey,
			ProductionBatch:            batch,
			ProducingParty:             party,
			ConfidentialityDesignation: types.ConfidentialityDesignation(designation),
		})
	}
	if len(docs) == 0 {
		fmt.Println("no files to ingest")
		return
	}

	out, err := pipeline.ProcessProduction(ctx, ingest.ProcessProductionInput{
		CaseID:    caseID,
		Documents: docs,
	})
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out.Results)
		fmt.Printf("processed=%d duplicates=%d failed=%d chunks=%d edges=%d\n",
			out.Processed, out.Duplicates, out.Failed, out.ChunksCreated, out.RelationshipEdges)
	}
	if err != nil {
		fmt.Printf("batch aborted: %v\n", err)
		os.Exit(1)
	}
	if out != nil && out.Failed > 0 {
		os.Exit(1)
	}
}
