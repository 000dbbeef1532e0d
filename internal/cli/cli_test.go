package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu_sniper/internal/model"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func hasRow(out string, fields ...string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.Join(strings.Fields(line), " ") == strings.Join(fields, " ") {
			return true
		}
	}
	return false
}

func TestLocalesCommand(t *testing.T) {
	out, _, err := executeCLI(t, "locales")
	require.NoError(t, err)
	assert.True(t, hasRow(out, "de_at", "de_de", "EUR"), out)
	assert.True(t, hasRow(out, "da_dk", "en_gb", "GBP"), out)
	assert.True(t, hasRow(out, "en_us", "en_us", "USD"), out)
}

func TestProductsCommand(t *testing.T) {
	out, _, err := executeCLI(t, "products", "--gpu", "3080", "--locale", "de_at", "--config", writeConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "NVIDIA GEFORCE RTX 3080")
	assert.True(t, hasRow(out, "5438792300", "de_de", "EUR"), out)
	assert.True(t, hasRow(out, "5438798100", "de_de", "EUR"), out)
}

func TestProductsCommandReadsConfigFile(t *testing.T) {
	cfg := writeConfig(t, "buyer:\n  gpu: 2060s\n  locale: EN_GB\n")
	out, _, err := executeCLI(t, "products", "--config", cfg)
	require.NoError(t, err)
	assert.True(t, hasRow(out, "5379432700", "en_gb", "GBP"), out)
}

func TestProductsCommandErrors(t *testing.T) {
	cfg := writeConfig(t, "")

	_, _, err := executeCLI(t, "products", "--config", cfg)
	assert.ErrorContains(t, err, "buyer.gpu is required")

	_, _, err = executeCLI(t, "products", "--config", cfg, "--gpu", "4090")
	assert.ErrorIs(t, err, model.ErrConfigurationMismatch)

	_, _, err = executeCLI(t, "products", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--gpu", "3080")
	assert.Error(t, err, "an explicit config path must exist")
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "cookies:\n  source: file\n")
	_, _, err := executeCLI(t, "run", "--config", cfg, "--gpu", "3080")
	assert.ErrorContains(t, err, "cookies.file is required")
}

func TestRunCommandTestModeAgainstFakeStore(t *testing.T) {
	var stockCalls, cartCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/en_us/USD/5438481700", r.URL.Path)
		if stockCalls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"status":"PRODUCT_INVENTORY_OUT_OF_STOCK"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"PRODUCT_INVENTORY_IN_STOCK"}`)
	})
	mux.HandleFunc("/add-to-cart", func(w http.ResponseWriter, _ *http.Request) {
		cartCalls.Add(1)
		_, _ = io.WriteString(w, `{"message":"Added successfully"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := writeConfig(t, fmt.Sprintf(`
storage:
  sqlitePath: "file:%s?mode=memory&cache=shared"
provider:
  stockURL: %s/products/{locale}/{currency}/{productId}
  tokenURL: %s/SessionToken
  cartURL: %s/add-to-cart
buyer:
  intervalMs: 1
log:
  level: error
`, uuid.NewString(), srv.URL, srv.URL, srv.URL))

	_, _, err := executeCLI(t, "run", "--config", cfg, "--gpu", "3080", "--locale", "en_us", "--test")
	require.NoError(t, err)
	assert.Equal(t, int32(3), stockCalls.Load())
	assert.Zero(t, cartCalls.Load())
}
