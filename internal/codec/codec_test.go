package codec

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		contentType string
		want        Kind
	}{
		{"application/json", KindJSON},
		{"APPLICATION/JSON", KindJSON},
		{"application/json; charset=utf-8", KindJSON},
		{"application/vnd.api+json", KindJSON},
		{"application/xml", KindXML},
		{"text/xml; charset=ISO-8859-1", KindXML},
		{"application/atom+xml", KindXML},
		{"application/json;;broken", KindJSON},
		{"text/plain", KindUnknown},
		{"text/html; charset=utf-8", KindUnknown},
		{"", KindUnknown},
		{"   ", KindUnknown},
	}
	for _, tt := range tests {
		if got := Select(tt.contentType); got != tt.want {
			t.Errorf("Select(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

type launch struct {
	XMLName   xml.Name `xml:"launch"`
	Inventory int      `json:"inventory" xml:"inventory"`
	Limit     string   `json:"limit" xml:"limit"`
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(KindJSON, map[string]any{"limit": "web", "inventory": 3})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := string(data); got != `{"inventory":3,"limit":"web"}` {
		t.Fatalf("unexpected json: %s", got)
	}
}

func TestEncodeXML(t *testing.T) {
	data, err := Encode(KindXML, launch{Inventory: 3, Limit: "web"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := xml.Header + "<launch><inventory>3</inventory><limit>web</limit></launch>"
	if string(data) != want {
		t.Fatalf("unexpected xml:\n got %s\nwant %s", data, want)
	}
}

func TestEncodeXML_UnsupportedValue(t *testing.T) {
	_, err := Encode(KindXML, map[string]any{"a": 1})
	if err == nil {
		t.Fatal("expected error encoding a map as xml")
	}
}

func TestEncodeUnknown(t *testing.T) {
	if _, err := Encode(KindUnknown, "x"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	var fromJSON launch
	if err := Decode(KindJSON, []byte(`{"inventory":9,"limit":"db"}`), &fromJSON); err != nil {
		t.Fatalf("Decode json: %v", err)
	}
	if fromJSON.Inventory != 9 || fromJSON.Limit != "db" {
		t.Fatalf("unexpected value: %+v", fromJSON)
	}

	var fromXML launch
	if err := Decode(KindXML, []byte(`<launch><inventory>4</inventory><limit>all</limit></launch>`), &fromXML); err != nil {
		t.Fatalf("Decode xml: %v", err)
	}
	if fromXML.Inventory != 4 || fromXML.Limit != "all" {
		t.Fatalf("unexpected value: %+v", fromXML)
	}

	err := Decode(KindJSON, []byte(`{not json`), &fromJSON)
	if err == nil || !strings.Contains(err.Error(), "decode json") {
		t.Fatalf("expected decode error, got %v", err)
	}

	if err := Decode(KindUnknown, nil, &fromJSON); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
