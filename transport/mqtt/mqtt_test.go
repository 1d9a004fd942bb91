package mqtt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/transport"
)

const testAddr core.Address = "0x1234567890abcdef1234567890abcdef12345678"

func TestNew_Defaults(t *testing.T) {
	tr := New(Config{
		Broker:      "tcp://localhost:1883",
		ArchivePath: "archive.db",
	})

	if tr.cfg.TopicPrefix != DefaultTopicPrefix {
		t.Errorf("expected default topic prefix %q, got %q", DefaultTopicPrefix, tr.cfg.TopicPrefix)
	}
	if tr.log == nil {
		t.Error("expected logger to be set")
	}
}

func TestStart_MissingBroker(t *testing.T) {
	tr := New(Config{ArchivePath: "archive.db"})
	if err := tr.Start(context.Background()); err == nil {
		t.Fatal("expected error with empty broker")
	}
}

func TestStart_MissingArchivePath(t *testing.T) {
	tr := New(Config{Broker: "tcp://localhost:1883"})
	if err := tr.Start(context.Background()); err == nil {
		t.Fatal("expected error with empty archive path")
	}
}

func TestSubmit_NotConnected(t *testing.T) {
	tr := New(Config{
		Broker:      "tcp://localhost:1883",
		ArchivePath: "archive.db",
	})

	_, err := tr.Submit(context.Background(), testAddr, []core.Address{testAddr}, []byte("x"))
	if err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestIsConnected_Default(t *testing.T) {
	tr := New(Config{
		Broker:      "tcp://localhost:1883",
		ArchivePath: "archive.db",
	})

	if tr.IsConnected() {
		t.Error("expected not connected before Start")
	}
}

func TestTopicNames(t *testing.T) {
	tr := New(Config{Broker: "tcp://localhost:1883", TopicPrefix: "rw"})

	key, err := testAddr.Key()
	if err != nil {
		t.Fatal(err)
	}
	wantInbox := "rw/inbox/" + key.String()
	if got := tr.inboxTopic(key); got != wantInbox {
		t.Errorf("inbox topic = %q, want %q", got, wantInbox)
	}

	wantKeys := "rw/keys/" + string(testAddr)
	if got := tr.keysTopic(core.Address("0X1234567890ABCDEF1234567890abcdef12345678")); got != wantKeys {
		t.Errorf("keys topic = %q, want %q", got, wantKeys)
	}

	back, ok := tr.keyFromInboxTopic(wantInbox)
	if !ok {
		t.Fatal("expected inbox topic to round-trip")
	}
	if back != key {
		t.Errorf("round-tripped key = %s, want %s", back, key)
	}
	if _, ok := tr.keyFromInboxTopic("rw/keys/" + string(testAddr)); ok {
		t.Error("keys topic should not parse as an inbox topic")
	}
	if _, ok := tr.keyFromInboxTopic("rw/inbox/zz"); ok {
		t.Error("garbage key should not parse")
	}
}

func TestArchive_HistoryOrder(t *testing.T) {
	arch, err := openArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	key, err := testAddr.Key()
	if err != nil {
		t.Fatal(err)
	}

	for i, body := range []string{"first", "second", "third"} {
		content := []byte(body)
		meta := transport.Metadata{
			ID:       newMessageID(),
			Sender:   testAddr,
			Content:  content,
			Checksum: sha256.Sum256(content),
		}
		if err := arch.append(key, meta); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := arch.history(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"first", "second", "third"} {
		if string(history[i].Content) != want {
			t.Errorf("message %d content = %q, want %q", i, history[i].Content, want)
		}
		if history[i].Recipient != testAddr {
			t.Errorf("message %d recipient = %s, want %s", i, history[i].Recipient, testAddr)
		}
		if err := crypto.VerifyContent(history[i].Content, history[i].Checksum); err != nil {
			t.Errorf("message %d checksum: %v", i, err)
		}
	}
}

func TestArchive_HistoryEmpty(t *testing.T) {
	arch, err := openArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	key, _ := testAddr.Key()
	history, err := arch.history(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d messages", len(history))
	}
}

func TestArchive_Keys(t *testing.T) {
	arch, err := openArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer arch.Close()

	if pub, err := arch.getKey(testAddr); err != nil || pub != nil {
		t.Fatalf("expected no key before announcement, got %v, %v", pub, err)
	}

	var pub [crypto.KeySize]byte
	copy(pub[:], []byte("announced key announced key 1234"))
	if err := arch.putKey(testAddr, pub); err != nil {
		t.Fatal(err)
	}

	got, err := arch.getKey(core.Address("0X1234567890ABCDEF1234567890ABCDEF12345678"))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != pub {
		t.Errorf("expected announced key back regardless of address case")
	}
}

func TestDeduper(t *testing.T) {
	d := newDeduper(4)
	key, _ := testAddr.Key()

	if d.hasSeen(key, "m-1") {
		t.Error("first delivery should not have been seen")
	}
	if !d.hasSeen(key, "m-1") {
		t.Error("redelivery should have been seen")
	}
	if d.hasSeen(key, "m-2") {
		t.Error("distinct ID should not have been seen")
	}

	other, _ := core.Address("0xffffffffffffffffffffffffffffffffffffffff").Key()
	if d.hasSeen(other, "m-1") {
		t.Error("same ID for a different recipient should not have been seen")
	}
}

func TestDeduper_WindowEviction(t *testing.T) {
	d := newDeduper(2)
	key, _ := testAddr.Key()

	d.hasSeen(key, "m-1")
	d.hasSeen(key, "m-2")
	d.hasSeen(key, "m-3") // evicts m-1

	if d.hasSeen(key, "m-1") {
		t.Error("evicted delivery should be treated as new")
	}
}

func TestWireMessage_ToMetadata(t *testing.T) {
	content := []byte("sealed bytes")
	sum := sha256.Sum256(content)
	msg := wireMessage{
		ID:        "m-1",
		Sender:    string(testAddr),
		Recipient: string(testAddr),
		Content:   content,
		Checksum:  hex.EncodeToString(sum[:]),
	}

	meta, err := msg.toMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Checksum != sum {
		t.Error("checksum did not survive decode")
	}

	msg.Checksum = "not hex"
	if _, err := msg.toMetadata(); err == nil {
		t.Error("expected error for malformed checksum")
	}
}
