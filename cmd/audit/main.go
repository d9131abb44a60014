package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/casevault/discovery-backend/internal/app"
	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var cases idList
	var checkDedup bool
	flag.Var(&cases, "case", "case id to audit (repeatable; default: every case)")
	flag.BoolVar(&checkDedup, "dedup", true, "also audit the deduplication index")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	var caseIDs []uuid.UUID
	if len(cases) > 0 {
		for _, raw := range cases {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil || id == uuid.Nil {
				fmt.Printf("invalid case id %q\n", raw)
				os.Exit(2)
			}
			caseIDs = append(caseIDs, id)
		}
	} else {
		var rows []*types.Case
		if err := application.DB.WithContext(ctx).Find(&rows).Error; err != nil {
			fmt.Printf("load cases: %v\n", err)
			os.Exit(1)
		}
		for _, c := range rows {
			caseIDs = append(caseIDs, c.ID)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	dirty := false
	for _, caseID := range caseIDs {
		report, err := application.Validator.VerifyCaseIsolation(dbc, caseID)
		if err != nil {
			fmt.Printf("verify case %s: %v\n", caseID, err)
			dirty = true
			continue
		}
		if !report.Clean() {
			dirty = true
		}
		_ = enc.Encode(report)
	}

	if checkDedup {
		discrepancies, err := application.Dedup.Audit(dbc)
		if err != nil {
			fmt.Printf("dedup audit: %v\n", err)
			os.Exit(1)
		}
		if len(discrepancies) > 0 {
			dirty = true
			fmt.Printf("dedup index discrepancies: %d\n", len(discrepancies))
			_ = enc.Encode(discrepancies)
		}
	}

	if dirty {
		os.Exit(1)
	}
	fmt.Printf("audited %d case(s): clean\n", len(caseIDs))
}
