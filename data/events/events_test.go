package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/deskhive/api/data/model"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	msg := NewMessage(EventTypeChatStatus, ChatStatusPayload{
		MessageID:      "m1",
		ConversationID: "c1",
		Status:         model.MessageStatusRead,
	})

	raw := msg.ToRaw()
	if raw.Type != EventTypeChatStatus {
		t.Fatalf("expected type %s got %s", EventTypeChatStatus, raw.Type)
	}

	back, err := ConvertMessage[ChatStatusPayload](raw)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	if back.Data != msg.Data {
		t.Fatalf("expected %+v got %+v", msg.Data, back.Data)
	}

	if back.Timestamp != msg.Timestamp {
		t.Fatalf("timestamp changed across conversion")
	}
}

func TestToRawPassesRawThrough(t *testing.T) {
	t.Parallel()

	raw := NewMessage(EventTypePing, json.RawMessage(`{"x":1}`))
	out := raw.ToRaw()

	if string(out.Data) != `{"x":1}` {
		t.Fatalf("raw payload was re-encoded: %s", out.Data)
	}
}

func TestCloseCodeStrings(t *testing.T) {
	t.Parallel()

	cases := map[CloseCode]string{
		CloseCodeServerError:      "Internal Server Error",
		CloseCodeUnknownOperation: "Unknown Operation",
		CloseCodeAuthFailure:      "Authentication Failed",
		CloseCode(4999):           "Undocumented Closure",
	}

	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("code %d: expected %q got %q", code, want, got)
		}
	}
}

func TestDispatchEncoding(t *testing.T) {
	t.Parallel()

	d := Dispatch{
		Group:   "student_stu1",
		Message: NewMessage(EventTypePong, PongPayload{ServerTime: time.Now().UnixMilli()}).ToRaw(),
	}

	b, err := jsonCodec.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Dispatch
	if err := jsonCodec.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if back.Group != d.Group || back.Message.Type != EventTypePong {
		t.Fatalf("dispatch did not survive the wire: %+v", back)
	}
}
