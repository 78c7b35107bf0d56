package datasync

import (
	"testing"
)

func TestParseHeadMessage_Notification(t *testing.T) {
	data := []byte(`{
		"jsonrpc": "2.0",
		"method": "eth_subscription",
		"params": {
			"subscription": "0xcd0c3e8af590364c09d0fa6a1210faf5",
			"result": {
				"number": "0x1b4",
				"hash": "0xabc123",
				"timestamp": "0x64c7f2a0"
			}
		}
	}`)

	header, ok, err := parseHeadMessage(data)
	if err != nil {
		t.Fatalf("parseHeadMessage failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a header notification")
	}
	if header.Number != 436 {
		t.Errorf("Number = %d, want 436", header.Number)
	}
	if header.Hash != "0xabc123" {
		t.Errorf("Hash = %s, want 0xabc123", header.Hash)
	}
	if header.Timestamp != 0x64c7f2a0 {
		t.Errorf("Timestamp = %d, want %d", header.Timestamp, uint64(0x64c7f2a0))
	}
}

func TestParseHeadMessage_SubscriptionConfirmation(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"result":"0xcd0c3e8af590364c09d0fa6a1210faf5"}`)

	_, ok, err := parseHeadMessage(data)
	if err != nil {
		t.Fatalf("parseHeadMessage failed: %v", err)
	}
	if ok {
		t.Error("confirmation must not be treated as a header")
	}
}

func TestParseHeadMessage_RPCError(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)

	_, _, err := parseHeadMessage(data)
	if err == nil {
		t.Error("rpc error payload must surface as an error")
	}
}

func TestParseHeadMessage_BadHex(t *testing.T) {
	data := []byte(`{
		"method": "eth_subscription",
		"params": {"subscription": "0x1", "result": {"number": "zzz", "hash": "0x1", "timestamp": "0x1"}}
	}`)

	_, _, err := parseHeadMessage(data)
	if err == nil {
		t.Error("unparseable block number must surface as an error")
	}
}

func TestParseHexUint(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0x0", 0, false},
		{"0x1b4", 436, false},
		{"1b4", 436, false},
		{"0x", 0, true},
		{"", 0, true},
		{"0xgg", 0, true},
	}
	for _, tc := range cases {
		got, err := parseHexUint(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseHexUint(%q) = %d, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHexUint(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseHexUint(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
