package api

import (
	"context"
	"fmt"

	"github.com/samcharles93/ngramlm/internal/lm"
)

// DefaultScore is returned for sequences the model refuses to score when the
// request does not name its own default.
const DefaultScore float32 = -100

// MaxBatchSequences bounds one batch request.
const MaxBatchSequences = 1024

// ScoringConfig holds service-wide request defaults.
type ScoringConfig struct {
	// DefaultScore is used when a request names none. Nil selects the
	// package DefaultScore; any other value, zero included, is used verbatim.
	DefaultScore *float32
	// Normalize applies NFKC to every request's text.
	Normalize bool
}

type ScoringService struct {
	provider     ModelProvider
	cfg          ScoringConfig
	defaultScore float32
}

func NewScoringService(provider ModelProvider, cfg ScoringConfig) *ScoringService {
	def := DefaultScore
	if cfg.DefaultScore != nil {
		def = *cfg.DefaultScore
	}
	return &ScoringService{provider: provider, cfg: cfg, defaultScore: def}
}

func (s *ScoringService) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	words := req.Words
	if len(words) == 0 {
		words = lm.SplitWords(req.Text, req.Normalize || s.cfg.Normalize)
	}
	def := s.defaultScore
	if req.DefaultScore != nil {
		def = *req.DefaultScore
	}

	var resp *ScoreResponse
	err := s.provider.WithModel(ctx, req.Model, func(m *lm.Model) error {
		p, err := requestPolicy(m.Policy(), req.Strict, req.BOS, req.Window)
		if err != nil {
			return err
		}
		if req.EOS != nil {
			p.EOS = *req.EOS
		}
		total := m.TotalScoreWith(p, words)
		resp = &ScoreResponse{
			ID:         newScoreID(),
			Object:     "score",
			Model:      modelLabel(req.Model, m),
			Score:      m.ScoreSequenceWith(p, words, def),
			Total:      total.Total,
			Words:      make([]WordScore, 0, len(total.Words)),
			OOV:        total.OOV,
			Perplexity: total.Perplexity,
		}
		for _, w := range total.Words {
			resp.Words = append(resp.Words, WordScore{
				Word:        w.Word,
				ID:          uint32(w.ID),
				Score:       w.Prob,
				NgramLength: w.NgramLength,
				OOV:         w.OOV,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *ScoringService) ScoreBatch(ctx context.Context, req *BatchScoreRequest) (*BatchScoreResponse, error) {
	if len(req.Sequences) == 0 {
		return nil, newInvalidRequest("sequences is required")
	}
	if len(req.Sequences) > MaxBatchSequences {
		return nil, newInvalidRequest(fmt.Sprintf("at most %d sequences per batch", MaxBatchSequences))
	}
	def := s.defaultScore
	if req.DefaultScore != nil {
		def = *req.DefaultScore
	}

	var resp *BatchScoreResponse
	err := s.provider.WithModel(ctx, req.Model, func(m *lm.Model) error {
		p, err := requestPolicy(m.Policy(), req.Strict, req.BOS, req.Window)
		if err != nil {
			return err
		}
		scores := make([]float32, len(req.Sequences))
		for i, seq := range req.Sequences {
			if i%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			scores[i] = m.ScoreSequenceWith(p, seq, def)
		}
		resp = &BatchScoreResponse{
			ID:     newBatchID(),
			Object: "score.batch",
			Model:  modelLabel(req.Model, m),
			Scores: scores,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *ScoringService) ListModels() ([]string, error) {
	return s.provider.ListModels()
}

func requestPolicy(base lm.Policy, strict *bool, bos string, window *int) (lm.Policy, error) {
	p := base
	if strict != nil {
		p.Strict = *strict
	}
	if bos != "" {
		b, err := lm.ParseBOSPolicy(bos)
		if err != nil {
			return p, newInvalidRequest(err.Error())
		}
		p.BOS = b
	}
	if window != nil {
		if *window < 0 {
			return p, newInvalidRequest("window must not be negative")
		}
		p.Window = *window
	}
	return p, nil
}

func modelLabel(requested string, m *lm.Model) string {
	if requested != "" {
		return requested
	}
	return modelName(m.Path())
}
