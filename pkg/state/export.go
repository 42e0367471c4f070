package state

import (
	"encoding/json"
	"io"
	"time"

	"autonet/pkg/model"
)

type exportDocument struct {
	ExportedAt  time.Time                `json:"exportedAt"`
	Since       time.Time                `json:"since"`
	Events      []model.Event            `json:"events"`
	Generations []model.GenerationRecord `json:"generations"`
	Deployments []model.DeploymentRecord `json:"deployments"`
}

func exportJSON(s Store, w io.Writer, since time.Time) error {
	events, err := s.Events(since, time.Time{}, 0)
	if err != nil {
		return err
	}
	generations, err := s.Generations(0)
	if err != nil {
		return err
	}
	deployments, err := s.Deployments("", 0)
	if err != nil {
		return err
	}
	doc := exportDocument{
		ExportedAt:  time.Now(),
		Since:       since,
		Events:      events,
		Generations: filterGenerations(generations, since),
		Deployments: filterDeployments(deployments, since),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func filterGenerations(in []model.GenerationRecord, since time.Time) []model.GenerationRecord {
	out := in[:0:0]
	for _, rec := range in {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out
}

func filterDeployments(in []model.DeploymentRecord, since time.Time) []model.DeploymentRecord {
	out := in[:0:0]
	for _, rec := range in {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out
}
