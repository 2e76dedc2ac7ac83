package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// stubSummary answers with a preamble and up to three bullets built from
// the article text in the user message.
func stubSummary(user string) string {
	_, body, ok := strings.Cut(user, "ARTICLE CONTENT:")
	if !ok {
		body = user
	}
	var b strings.Builder
	b.WriteString("Here is a summary of the article:\n")
	n := 0
	for _, s := range strings.Split(body, ".") {
		words := strings.Fields(s)
		if len(words) < 5 {
			continue
		}
		if len(words) > 25 {
			words = words[:25]
		}
		b.WriteString("• " + strings.Join(words, " ") + ".\n")
		if n++; n == 3 {
			break
		}
	}
	if n == 0 {
		b.WriteString("• The article did not contain enough text to summarize.\n")
	}
	return b.String()
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		user := ""
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-stub",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": stubSummary(user)},
				"finish_reason": "stop",
			}},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
