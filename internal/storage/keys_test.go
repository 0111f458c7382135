package storage

import "testing"

func TestArchiveKey(t *testing.T) {
	tests := []struct {
		name                             string
		prefix, date, identity, filename string
		want                             string
	}{
		{"plain", "logs", "2024-10-30", "pod-0", "vds_server.log", "logs/2024-10-30/pod-0/vds_server.log"},
		{"trailing slash", "logs/", "2024-10-30", "pod-0", "vds_server.log", "logs/2024-10-30/pod-0/vds_server.log"},
		{"nested prefix", "fid/archive", "2024-10-29", "fid-1", "alerts.log.1", "fid/archive/2024-10-29/fid-1/alerts.log.1"},
		{"empty prefix", "", "2024-10-30", "pod-0", "web.log", "2024-10-30/pod-0/web.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArchiveKey(tt.prefix, tt.date, tt.identity, tt.filename)
			if got != tt.want {
				t.Errorf("ArchiveKey() = %q, want %q", got, tt.want)
			}
			// Deterministic for identical inputs.
			if again := ArchiveKey(tt.prefix, tt.date, tt.identity, tt.filename); again != got {
				t.Errorf("ArchiveKey() not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestCollectKey(t *testing.T) {
	if got := CollectKey("fid-prod", "fid-0", "web_access.log"); got != "fid-prod/fid-0/web_access.log" {
		t.Errorf("CollectKey() = %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("vds_server.log.zip"); got != "application/zip" {
		t.Errorf("ContentTypeFor(zip) = %q", got)
	}
	if got := ContentTypeFor("vds_server.log.3"); got != "text/plain; charset=utf-8" {
		t.Errorf("ContentTypeFor(rotated) = %q", got)
	}
}
