package main

import (
	"context"
	"fmt"

	"github.com/metalagman/consultant/internal/agents/ba"
	"github.com/metalagman/consultant/internal/agents/leaf"
	"github.com/metalagman/consultant/internal/agents/pm"
	"github.com/metalagman/consultant/internal/config"
	"github.com/metalagman/consultant/internal/db"
	"github.com/metalagman/consultant/internal/evaluator/project"
	"github.com/metalagman/consultant/internal/evaluator/requirement"
	"github.com/metalagman/consultant/internal/llm"
	"github.com/metalagman/consultant/internal/orchestrator"
	"github.com/metalagman/consultant/internal/prompts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// app is the wired workflow shared by every command.
type app struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	archive *db.Store
}

func (a *app) Close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	profile, agents, err := cfg.ResolveAgents(viper.GetString("profile"))
	if err != nil {
		return nil, err
	}
	backends, err := llm.NewForStages(ctx, agents)
	if err != nil {
		return nil, err
	}
	set, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	deps := orchestrator.Deps{
		Collector: ba.New(backends[config.StageExtract], set, requirement.New(cfg.Policy.Requirement), cfg.Timeouts.Extract),
		Planner: pm.New(pm.Leaves{
			Milestones: leaf.NewMilestonePlanner(backends[config.StageMilestones], set, cfg.Timeouts.Leaf),
			TechStack:  leaf.NewTechStackAdvisor(backends[config.StageTechStack], set, cfg.Timeouts.Leaf),
			Risks:      leaf.NewRiskAnalyzer(backends[config.StageRisks], set, cfg.Timeouts.Leaf),
			Estimator:  leaf.NewCostEstimator(backends[config.StageEstimate], set, cfg.Timeouts.Estimate),
		}),
		Evaluator: project.New(cfg.Policy.Project),
	}
	if cfg.Archive.Path != "" {
		st, err := openArchive(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.archive = st
		deps.Archive = st
	}

	a.orch = orchestrator.New(deps, orchestrator.Options{
		MaxCycles:    cfg.Policy.MaxRevisionCycles,
		StageRetries: cfg.Policy.StageRetries,
		TurnTimeout:  cfg.Timeouts.Turn,
	})
	log.Debug().
		Str("profile", profile).
		Bool("archive", a.archive != nil).
		Msg("workflow ready")
	return a, nil
}

func openArchive(ctx context.Context, cfg config.Config) (*db.Store, error) {
	if cfg.Archive.Path == "" {
		return nil, fmt.Errorf("archive is disabled: set archive.path in the config or CONSULTANT_ARCHIVE_PATH")
	}
	conn, err := db.Open(ctx, cfg.Archive.Path)
	if err != nil {
		return nil, err
	}
	return db.NewStore(conn), nil
}
