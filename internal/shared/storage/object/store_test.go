package object

import "testing"

func TestPDFKey(t *testing.T) {
	got, err := PDFKey("tenant-1", "job-1")
	if err != nil {
		t.Fatalf("PDFKey: %v", err)
	}
	if got != "resumes/tenant-1/job-1.pdf" {
		t.Fatalf("unexpected key %q", got)
	}

	got, err = PDFKey("a/b", "job-1")
	if err != nil {
		t.Fatalf("PDFKey: %v", err)
	}
	if got != "resumes/a_b/job-1.pdf" {
		t.Fatalf("unexpected key %q", got)
	}

	if _, err := PDFKey("..", "job-1"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := PDFKey("tenant-1", " "); err == nil {
		t.Fatalf("expected empty job id to be rejected")
	}
}
