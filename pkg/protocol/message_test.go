package protocol

import (
	"encoding/base64"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
	}{
		{name: "speak", msgType: TypeSpeak, data: SpeakData{Text: "hello"}},
		{name: "button", msgType: TypeButtonPress, data: ButtonPressData{ButtonID: "main", PressType: "short"}},
		{name: "nil data", msgType: TypePing, data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("timestamp should be set")
			}
			if msg.ID != "" {
				t.Error("plain messages carry no correlation id")
			}
		})
	}
}

func TestRequestResponseCorrelation(t *testing.T) {
	req, err := NewRequest(TypePhotoRequest, nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.ID == "" {
		t.Fatal("request should have an id")
	}

	resp, err := NewResponse(req.ID, TypePhotoResponse, PhotoData{RequestID: "r1", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := resp.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if parsed.ID != req.ID {
		t.Errorf("id = %s, want %s", parsed.ID, req.ID)
	}
	var photo PhotoData
	if err := parsed.ParseData(&photo); err != nil {
		t.Fatal(err)
	}
	if photo.RequestID != "r1" {
		t.Errorf("request id = %s", photo.RequestID)
	}
}

func TestParseMessageRejectsMissingType(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"data":{}}`)); err == nil {
		t.Error("expected error for missing type")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestPhotoDataBytes(t *testing.T) {
	p := PhotoData{Data: base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8})}
	b, err := p.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 2 || b[0] != 0xFF {
		t.Errorf("unexpected bytes %v", b)
	}
}
