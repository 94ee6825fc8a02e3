package rates

import "testing"

func TestExtractPUCTCertificate(t *testing.T) {
	cert, ok := ExtractPUCTCertificate("This REP holds PUCT Certificate #10089 in the state of Texas.")
	if !ok || cert != "10089" {
		t.Fatalf("got cert=%q ok=%v, want 10089/true", cert, ok)
	}
}

func TestExtractEFLVersionCode_PrefersLastLabelMatch(t *testing.T) {
	text := "Version #: ABC1 superseded by Version #: ABC2"
	v, ok := ExtractEFLVersionCode(text)
	if !ok || v != "ABC2" {
		t.Fatalf("got v=%q ok=%v, want ABC2/true", v, ok)
	}
}

func TestExtractEFLVersionCode_FallsBackToFooterToken(t *testing.T) {
	text := "no version label here\nM1F0123456789ABCDEF"
	v, ok := ExtractEFLVersionCode(text)
	if !ok || v != "M1F0123456789ABCDEF" {
		t.Fatalf("got v=%q ok=%v", v, ok)
	}
}

func TestExtractEFLVersionCode_NoMatch(t *testing.T) {
	if _, ok := ExtractEFLVersionCode("nothing relevant in this document"); ok {
		t.Fatal("expected no match")
	}
}
