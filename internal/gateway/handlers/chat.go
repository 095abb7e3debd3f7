package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/costpilot/gateway/internal/gateway/accounting"
	"github.com/costpilot/gateway/internal/gateway/apierr"
	"github.com/costpilot/gateway/internal/gateway/cache"
	"github.com/costpilot/gateway/internal/gateway/forward"
	"github.com/costpilot/gateway/internal/gateway/pricing"
	"github.com/costpilot/gateway/internal/gateway/rules"
	"github.com/costpilot/gateway/internal/gateway/secrets"
	"github.com/costpilot/gateway/internal/gateway/validate"
	"github.com/costpilot/gateway/internal/shared/models"
)

// ChatRequest is the inbound gateway payload.
type ChatRequest struct {
	Endpoint    string                         `json:"endpoint"`
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature *float32                       `json:"temperature,omitempty"`
	MaxTokens   *int                           `json:"max_tokens,omitempty"`
	TopP        *float32                       `json:"top_p,omitempty"`
}

// upstreamRequest is what actually goes over the wire: the possibly-routed
// model, with the gateway-only endpoint field stripped.
type upstreamRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature *float32                       `json:"temperature,omitempty"`
	MaxTokens   *int                           `json:"max_tokens,omitempty"`
	TopP        *float32                       `json:"top_p,omitempty"`
}

// RuleStore provides the per-request rule snapshot.
type RuleStore interface {
	ListEnabledRules(ctx context.Context, ownerID string) ([]models.Rule, error)
}

// Upstream is the forwarding collaborator.
type Upstream interface {
	Do(ctx context.Context, endpoint, provider, secret string, payload []byte) (*forward.Result, error)
}

type ChatHandler struct {
	ruleStore  RuleStore
	cache      *cache.Cache
	upstream   Upstream
	cipher     *secrets.Cipher
	accounting *accounting.Dispatcher
}

func NewChatHandler(ruleStore RuleStore, c *cache.Cache, upstream Upstream, cipher *secrets.Cipher, acct *accounting.Dispatcher) *ChatHandler {
	return &ChatHandler{
		ruleStore:  ruleStore,
		cache:      c,
		upstream:   upstream,
		cipher:     cipher,
		accounting: acct,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	cred := CredentialFrom(ctx)
	if cred == nil {
		writeError(w, apierr.Unauthorized("missing credential"))
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "messages are required"})
		return
	}

	// Validation: allowlisted host, supported model family, and the endpoint's
	// provider must be the one the credential is stored for.
	provider, err := validate.Endpoint(req.Endpoint)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validate.Model(req.Model); err != nil {
		writeError(w, err)
		return
	}
	if err := validate.ProviderMatch(provider, cred.Provider); err != nil {
		writeError(w, err)
		return
	}

	// Rule evaluation runs over an immutable snapshot fetched once.
	snapshot, err := h.ruleStore.ListEnabledRules(ctx, cred.OwnerID)
	if err != nil {
		writeError(w, apierr.Internal(fmt.Errorf("rule store: %w", err)))
		return
	}
	prompt := pricing.PromptText(req.Messages)
	decision := rules.Evaluate(snapshot, rules.Request{
		Model:         req.Model,
		Prompt:        prompt,
		EstimatedCost: pricing.EstimateInputCost(req.Model, prompt),
		Now:           time.Now(),
	})

	// Cache is keyed by the routed model, so two requests that route to the
	// same target share an entry.
	fingerprint := cache.Fingerprint(decision.Model, req.Messages)
	if body, ok := h.cache.Get(ctx, cred.OwnerID, fingerprint); ok {
		h.writeUpstreamBody(w, body, true, 0, 0, startTime)
		h.accounting.Record(h.record(requestID, cred, decision.Model, 0, 0, 0, startTime, models.RequestCached, nil))
		h.accounting.TouchCredential(cred.ID)
		return
	}

	secret, err := h.cipher.Decrypt(cred.EncryptedSecret)
	if err != nil {
		writeError(w, apierr.Internal(fmt.Errorf("credential decrypt: %w", err)))
		return
	}

	payload, err := json.Marshal(upstreamRequest{
		Model:       decision.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	})
	if err != nil {
		writeError(w, apierr.Internal(err))
		return
	}

	res, err := h.upstream.Do(ctx, req.Endpoint, provider, secret, payload)
	if err != nil {
		ae := apierr.From(err)
		writeError(w, ae)
		msg := ae.Message
		h.accounting.Record(h.record(requestID, cred, decision.Model, 0, 0, 0, startTime, models.RequestError, &msg))
		h.accounting.TouchCredential(cred.ID)
		return
	}

	inTokens, outTokens := res.InputTokens, res.OutputTokens
	if inTokens == 0 && outTokens == 0 {
		// Provider did not report usage; estimate from the payloads.
		inTokens = pricing.CountTokens(prompt, decision.Model)
		outTokens = pricing.CountTokens(res.OutputText, decision.Model)
	}
	cost := pricing.Price(decision.Model, inTokens, outTokens)

	// Savings compare what the original model would have cost against what
	// the routed model did cost, over the same token counts.
	var savings float64
	if decision.Applied {
		savings = pricing.Savings(decision.OriginalModel, decision.Model, inTokens, outTokens)
	}

	h.writeUpstreamBody(w, res.Body, false, inTokens+outTokens, cost, startTime)

	// Everything below is fire-and-forget; the caller never waits on it.
	body := res.Body
	ownerID := cred.OwnerID
	h.accounting.Go("cache_write", func(ctx context.Context) error {
		h.cache.Set(ctx, ownerID, fingerprint, body)
		return nil
	})
	h.accounting.Record(h.record(requestID, cred, decision.Model, inTokens+outTokens, cost, savings, startTime, models.RequestSuccess, nil))
	if decision.Applied && savings > 0 {
		h.accounting.CreditRule(decision.RuleID, savings)
	}
	h.accounting.EnforceBudgets(cred.OwnerID, cost)
	h.accounting.TouchCredential(cred.ID)
}

// writeUpstreamBody echoes the upstream JSON verbatim, augmented with the
// gateway's metering headers.
func (h *ChatHandler) writeUpstreamBody(w http.ResponseWriter, body []byte, cacheHit bool, tokens int, cost float64, startTime time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache-Hit", fmt.Sprintf("%v", cacheHit))
	w.Header().Set("X-Tokens-Used", fmt.Sprintf("%d", tokens))
	w.Header().Set("X-Cost-USD", fmt.Sprintf("%.6f", cost))
	w.Header().Set("X-Latency-Ms", fmt.Sprintf("%d", time.Since(startTime).Milliseconds()))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *ChatHandler) record(requestID string, cred *models.Credential, model string, tokens int, cost, savings float64, startTime time.Time, status string, errMsg *string) models.RequestRecord {
	return models.RequestRecord{
		RequestID:    requestID,
		OwnerID:      cred.OwnerID,
		CredentialID: cred.ID,
		Provider:     cred.Provider,
		Model:        model,
		TokensUsed:   tokens,
		CostUSD:      cost,
		SavingsUSD:   savings,
		LatencyMs:    int(time.Since(startTime).Milliseconds()),
		Status:       status,
		ErrorMessage: errMsg,
	}
}
