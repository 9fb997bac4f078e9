package voicegrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestKeyMaterialRedaction(t *testing.T) {
	keys := testKeys()

	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)
	logger.Info().Object("keys", keys).Msg("loaded")

	jsonBytes, err := json.Marshal(keys)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	renderings := map[string]string{
		"String":   keys.String(),
		"GoString": fmt.Sprintf("%#v", keys),
		"Printf":   fmt.Sprintf("%v", keys),
		"JSON":     string(jsonBytes),
		"zerolog":  logBuf.String(),
	}
	for name, out := range renderings {
		if strings.Contains(out, "s3cr3t") {
			t.Fatalf("%s leaked the secret: %s", name, out)
		}
		if !strings.Contains(out, redacted) {
			t.Fatalf("%s missing redaction marker: %s", name, out)
		}
		if !strings.Contains(out, "SK1") {
			t.Fatalf("%s dropped non-secret fields: %s", name, out)
		}
	}
}

func TestKeyMaterialValidate(t *testing.T) {
	if err := testKeys().Validate(); err != nil {
		t.Fatalf("complete keys must validate: %v", err)
	}
	if (KeyMaterial{}).Complete() {
		t.Fatal("empty keys must not be complete")
	}
	if err := (KeyMaterial{AccountID: "AC1"}).Validate(); err != ErrMisconfigured {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
}
