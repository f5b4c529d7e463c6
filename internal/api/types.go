package api

import (
	"time"

	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

type askRequest struct {
	Question string `json:"question"`
}

type exportRequest struct {
	Question string `json:"question"`
	All      bool   `json:"all"`
	Format   string `json:"format"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type clusterShare struct {
	ClusterID string `json:"cluster_id"`
	Summary   string `json:"summary"`
	Count     int    `json:"count"`
	Shown     int    `json:"shown"`

	// Percent is the share of displayed results; PercentFound of all retrieved
	Percent      float64 `json:"percent"`
	PercentFound float64 `json:"percent_found"`
}

type askResponse struct {
	Outcome      orchestrator.Outcome `json:"outcome"`
	Question     string               `json:"question"`
	Answer       string               `json:"answer,omitempty"`
	Found        int                  `json:"found"`
	Shown        int                  `json:"shown"`
	Distribution []clusterShare       `json:"distribution"`
	Overview     []string             `json:"overview"`
	Reviews      []string             `json:"reviews"`
	Turn         *session.ChatTurn    `json:"turn,omitempty"`
}

type historyResponse struct {
	SessionID string             `json:"session_id"`
	Total     int                `json:"total"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
	Turns     []session.ChatTurn `json:"turns"`
}

func newAskResponse(res *orchestrator.Result) askResponse {
	out := askResponse{
		Outcome:      res.Outcome,
		Question:     res.Question,
		Found:        res.Summary.Found,
		Shown:        res.Summary.Shown,
		Distribution: make([]clusterShare, 0, len(res.Summary.Clusters)),
		Overview:     nonNil(res.Summary.Overview),
		Reviews:      nonNil(res.Summary.Reviews),
		Turn:         res.Turn,
	}
	if res.Answer != nil {
		out.Answer = res.Answer.Text
	}
	for _, c := range res.Summary.Clusters {
		out.Distribution = append(out.Distribution, clusterShare{
			ClusterID:    c.ClusterID,
			Summary:      c.Summary,
			Count:        c.Count,
			Shown:        c.ShownCount,
			Percent:      res.Summary.PercentShown(c),
			PercentFound: res.Summary.PercentFound(c),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
