// Command mock serves the store endpoints gpu-sniper talks to, with random
// stock and cart outcomes, for local dry runs:
//
//	stockURL: http://localhost:8080/products/{locale}/{currency}/{productId}
//	tokenURL: http://localhost:8080/SessionToken
//	cartURL:  http://localhost:8080/add-to-cart
package main

import (
	crand "crypto/rand"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	stockRate := flag.Float64("stock-rate", 0.1, "probability a stock check reports in stock")
	failRate := flag.Float64("fail-rate", 0.05, "probability a stock check answers 503")
	cartRate := flag.Float64("cart-rate", 0.5, "probability an add to cart succeeds")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/mock/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/products/"), "/")
		if len(parts) != 3 {
			http.NotFound(w, r)
			return
		}
		if rand.Float64() < *failRate {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		status := "PRODUCT_INVENTORY_OUT_OF_STOCK"
		if rand.Float64() < *stockRate {
			status = "PRODUCT_INVENTORY_IN_STOCK"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"products": map[string]any{
				"product": []map[string]any{{
					"id":              parts[2],
					"locale":          parts[0],
					"pricing":         map[string]any{"currency": parts[1]},
					"inventoryStatus": map[string]any{"status": status},
				}},
			},
		})
	})

	mux.HandleFunc("/SessionToken", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("format") != "json" {
			http.Error(w, "format=json required", http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "mock_session", Value: randString(12), Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{
			"session_token": randString(32),
			"exp":           time.Now().Add(10 * time.Minute).Unix(),
		})
	})

	mux.HandleFunc("/add-to-cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("nvidia_shop_id") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing session token"})
			return
		}
		var body struct {
			Products []struct {
				ProductID string `json:"productId"`
				Quantity  int    `json:"quantity"`
			} `json:"products"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Products) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
			return
		}
		if rand.Float64() < *cartRate {
			writeJSON(w, http.StatusOK, map[string]any{"message": "Product added successfully", "productId": body.Products[0].ProductID})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Product is no longer available"})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("mock store listening on %s", *addr)
	log.Fatal(srv.ListenAndServe())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func randString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	if n <= 0 {
		return ""
	}
	raw := make([]byte, n)
	_, _ = crand.Read(raw)
	out := make([]byte, n)
	for i := range out {
		out[i] = letters[int(raw[i])%len(letters)]
	}
	return string(out)
}
