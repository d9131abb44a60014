package qdrant

import (
	"errors"
	"testing"
)

func TestResolveConfigFromEnv(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "discovery_chunks")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.VectorDim != 1536 {
		t.Fatalf("vector dim: want=1536 got=%d", cfg.VectorDim)
	}
	if cfg.NamespacePrefix != "dv" {
		t.Fatalf("namespace prefix should default: got=%q", cfg.NamespacePrefix)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		url  string
		coll string
		dim  string
		code ConfigErrorCode
	}{
		{"missing url", "", "c", "8", ConfigErrorMissingURL},
		{"invalid url", "not a url", "c", "8", ConfigErrorInvalidURL},
		{"missing collection", "http://q:6333", "", "8", ConfigErrorMissingCollection},
		{"missing dim", "http://q:6333", "c", "", ConfigErrorMissingVectorDim},
		{"invalid dim", "http://q:6333", "c", "zero", ConfigErrorInvalidVectorDim},
		{"negative dim", "http://q:6333", "c", "-4", ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_COLLECTION", tc.coll)
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)

			_, err := ResolveConfigFromEnv()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want ConfigError got %v", err)
			}
			if ce.Code != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, ce.Code)
			}
		})
	}
}
