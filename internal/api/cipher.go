package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/history"
	"github.com/RowanDark/subcipher/internal/logging"
	"github.com/RowanDark/subcipher/internal/observability/tracing"
	"github.com/RowanDark/subcipher/internal/subst"
)

// SubstituteResponse is returned by the encode and decode endpoints.
type SubstituteResponse struct {
	Seed            int64      `json:"seed"`
	Mode            subst.Mode `json:"mode"`
	Reserved        bool       `json:"reserved"`
	ForcedUppercase bool       `json:"forced_uppercase"`
	Fingerprint     string     `json:"fingerprint"`
	Output          string     `json:"output"`
}

// CipherOperationRequest represents a request to execute a cipher operation
type CipherOperationRequest struct {
	Operation string         `json:"operation"`
	Input     string         `json:"input"`
	Config    map[string]any `json:"config,omitempty"`
}

// CipherOperationResponse represents the result of a cipher operation
type CipherOperationResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// CipherPipelineRequest represents a request to execute a pipeline of operations
type CipherPipelineRequest struct {
	Input      string                   `json:"input"`
	Operations []cipher.OperationConfig `json:"operations"`
	Reverse    bool                     `json:"reverse,omitempty"`
}

// RecipeSaveRequest represents a request to save a recipe
type RecipeSaveRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Tags        []string                 `json:"tags,omitempty"`
	Operations  []cipher.OperationConfig `json:"operations"`
}

// RecipeListResponse represents the list of recipes
type RecipeListResponse struct {
	Recipes []cipher.Recipe `json:"recipes"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// decodeBody decodes a JSON request body, keeping numbers as json.Number so
// 64-bit seeds are not rounded through float64.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

// parseSeed reads an integer seed. Missing values fall back to def.
func parseSeed(raw gjson.Result, def int64) (int64, error) {
	if !raw.Exists() || raw.Type == gjson.Null {
		return def, nil
	}
	if raw.Type != gjson.Number {
		return 0, fmt.Errorf("seed must be a number")
	}
	seed, err := strconv.ParseInt(raw.Raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("seed must be a 64-bit integer")
	}
	return seed, nil
}

// handleSubstitute serves POST {"seed":N,"text":"..."} for one direction.
func (s *Server) handleSubstitute(mode subst.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, http.MethodPost)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !gjson.ValidBytes(body) {
			s.writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		fields := gjson.GetManyBytes(body, "seed", "text")
		seed, err := parseSeed(fields[0], s.cfg.DefaultSeed)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fields[1].Type != gjson.String {
			s.writeError(w, http.StatusBadRequest, "text field is required and must be a string")
			return
		}
		text := fields[1].Str

		ctx := r.Context()
		c := cipher.CipherFor(seed)
		out, err := cipher.Substitute(ctx, c, mode, []byte(text), "")
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		s.recordRun(ctx, c, mode, len(text), len(out))
		s.writeJSON(w, http.StatusOK, SubstituteResponse{
			Seed:            seed,
			Mode:            mode,
			Reserved:        c.Reserved(),
			ForcedUppercase: c.ForcesUppercase(mode),
			Fingerprint:     c.Fingerprint(),
			Output:          string(out),
		})
	}
}

func (s *Server) recordRun(ctx context.Context, c *subst.Cipher, mode subst.Mode, inBytes, outBytes int) {
	meta := map[string]any{
		"seed":         c.Seed(),
		"mode":         string(mode),
		"reserved":     c.Reserved(),
		"fingerprint":  c.Fingerprint(),
		"input_bytes":  inBytes,
		"output_bytes": outBytes,
	}
	if err := s.logger.Emit(logging.AuditEvent{
		EventType: logging.EventAPIRequest,
		Decision:  logging.DecisionAllow,
		RequestID: RequestIDFromContext(ctx),
		TraceID:   tracing.TraceIDFromContext(ctx),
		Metadata:  meta,
	}); err != nil {
		s.log.Warn("audit emit failed", "error", err)
	}
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(ctx, history.NewEntry(c, mode, history.SourceAPI, inBytes, outBytes)); err != nil {
		s.log.Warn("history record failed", "error", err)
	}
}

// handleCipherExecute handles execution of a single cipher operation
func (s *Server) handleCipherExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CipherOperationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Operation == "" {
		s.writeError(w, http.StatusBadRequest, "operation field is required")
		return
	}

	op, exists := cipher.GetOperation(req.Operation)
	if !exists {
		s.writeJSON(w, http.StatusBadRequest, CipherOperationResponse{
			Error: "unknown operation: " + req.Operation,
		})
		return
	}

	result, err := op.Execute(r.Context(), []byte(req.Input), req.Config)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherOperationResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, CipherOperationResponse{Output: string(result)})
}

// handleCipherPipeline handles execution of a pipeline of operations
func (s *Server) handleCipherPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CipherPipelineRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Operations) == 0 {
		s.writeError(w, http.StatusBadRequest, "operations field is required and must not be empty")
		return
	}

	pipeline := &cipher.Pipeline{Operations: req.Operations, Reversible: req.Reverse}
	if req.Reverse {
		reversed, err := pipeline.Reverse()
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, CipherOperationResponse{Error: err.Error()})
			return
		}
		pipeline = reversed
	}

	result, err := pipeline.Execute(r.Context(), []byte(req.Input))
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherOperationResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, CipherOperationResponse{Output: string(result)})
}

// handleCipherListOperations handles listing all available operations
func (s *Server) handleCipherListOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"operations": cipher.Describe()})
}

var tableContentTypes = map[subst.Format]string{
	subst.FormatJSON: "application/json",
	subst.FormatYAML: "application/yaml",
	subst.FormatCBOR: "application/cbor",
}

// handleCipherTable returns the encode and decode tables for ?seed=N in the
// format chosen by ?format= (json, yaml or cbor).
func (s *Server) handleCipherTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	seed := s.cfg.DefaultSeed
	if raw := strings.TrimSpace(r.URL.Query().Get("seed")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "seed must be a 64-bit integer")
			return
		}
		seed = parsed
	}
	format := subst.FormatJSON
	if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
		format = subst.Format(strings.ToLower(raw))
	}
	contentType, ok := tableContentTypes[format]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "format must be json, yaml or cbor")
		return
	}

	data, err := cipher.CipherFor(seed).Export(format)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleRecipes serves GET (list or ?name=), POST (save) and DELETE ?name=.
func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleRecipeGet(w, r)
	case http.MethodPost:
		s.handleRecipeSave(w, r)
	case http.MethodDelete:
		s.handleRecipeDelete(w, r)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleRecipeGet(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		recipe, exists := s.recipeManager.GetRecipe(name)
		if !exists {
			s.writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"recipe": recipe})
		return
	}

	query := r.URL.Query().Get("q")
	var recipes []*cipher.Recipe
	if query != "" {
		recipes = s.recipeManager.SearchRecipes(query)
	} else {
		recipes = s.recipeManager.ListRecipes()
	}
	list := make([]cipher.Recipe, len(recipes))
	for i, recipe := range recipes {
		list[i] = *recipe
	}
	s.writeJSON(w, http.StatusOK, RecipeListResponse{Recipes: list})
}

func (s *Server) handleRecipeSave(w http.ResponseWriter, r *http.Request) {
	var req RecipeSaveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	recipe := &cipher.Recipe{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Pipeline:    cipher.Pipeline{Operations: req.Operations, Reversible: true},
	}
	if err := s.recipeManager.SaveRecipe(recipe); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_ = s.logger.Emit(logging.AuditEvent{
		EventType: logging.EventRecipeSaved,
		Decision:  logging.DecisionAllow,
		RequestID: RequestIDFromContext(r.Context()),
		Metadata:  map[string]any{"recipe": recipe.Name, "recipe_id": recipe.ID, "steps": len(recipe.Pipeline.Operations)},
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "recipe": recipe})
}

func (s *Server) handleRecipeDelete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "recipe name required")
		return
	}
	if err := s.recipeManager.DeleteRecipe(name); err != nil {
		if errors.Is(err, cipher.ErrRecipeNotFound) {
			s.writeError(w, http.StatusNotFound, "recipe not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = s.logger.Emit(logging.AuditEvent{
		EventType: logging.EventRecipeDeleted,
		Decision:  logging.DecisionAllow,
		RequestID: RequestIDFromContext(r.Context()),
		Metadata:  map[string]any{"recipe": name},
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
