package domain

import (
	"errors"
	"testing"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "plain title",
			raw:  "Go Blog",
			want: "Go Blog",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  Release Notes\t",
			want: "Release Notes",
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: ErrMissingTitle,
		},
		{
			name:    "whitespace only",
			raw:     "   ",
			wantErr: ErrMissingTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTitle(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateTitle(%q) err = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateTitle(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ValidateTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "bare host gets default scheme",
			raw:  "example.com",
			want: "https://example.com",
		},
		{
			name: "bare host with path",
			raw:  "example.org/x",
			want: "https://example.org/x",
		},
		{
			name: "absolute url unchanged",
			raw:  "https://example.com",
			want: "https://example.com",
		},
		{
			name: "http scheme preserved",
			raw:  "http://example.com/a?b=c",
			want: "http://example.com/a?b=c",
		},
		{
			name: "whitespace trimmed",
			raw:  "  example.com  ",
			want: "https://example.com",
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: ErrMissingURL,
		},
		{
			name:    "whitespace only",
			raw:     " \t ",
			wantErr: ErrMissingURL,
		},
		{
			name:    "scheme with no host",
			raw:     "https://",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "unparseable after coercion",
			raw:     "exa mple.com/%zz",
			wantErr: ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizeURL(%q) err = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// Normalizing twice must yield the first result: the sync layer feeds
// already-stored URLs back through validation on import.
func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"example.com",
		"example.org/x?q=1",
		"https://example.com",
		"http://user@example.net/path#frag",
	}

	for _, raw := range inputs {
		once, err := NormalizeURL(raw)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error: %v", raw, err)
		}
		twice, err := NormalizeURL(once)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) second pass error: %v", once, err)
		}
		if once != twice {
			t.Errorf("NormalizeURL not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var verr *ValidationError
	if _, err := NormalizeURL(""); !errors.As(err, &verr) {
		t.Errorf("NormalizeURL(\"\") should yield a *ValidationError, got %T", err)
	}

	serr := &StoreError{Message: "duplicate key value violates unique constraint", Status: 409}
	if serr.Error() != "duplicate key value violates unique constraint" {
		t.Errorf("StoreError must surface the store message verbatim, got %q", serr.Error())
	}
	if serr.NotFound() {
		t.Error("409 StoreError reported NotFound")
	}
	if !(&StoreError{Message: "no rows", Status: 404}).NotFound() {
		t.Error("404 StoreError did not report NotFound")
	}

	cause := errors.New("dial tcp: refused")
	cerr := &ChannelError{Err: cause}
	if !errors.Is(cerr, cause) {
		t.Error("ChannelError should unwrap to its cause")
	}
}
