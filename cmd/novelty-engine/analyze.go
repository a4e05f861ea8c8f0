// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/novelty-engine/internal/archive"
	"github.com/pdiddy/novelty-engine/internal/container"
	"github.com/pdiddy/novelty-engine/internal/extract"
	"github.com/pdiddy/novelty-engine/internal/ingest"
	"github.com/pdiddy/novelty-engine/internal/match"
	"github.com/pdiddy/novelty-engine/internal/pipeline"
	"github.com/pdiddy/novelty-engine/internal/retrieve"
	"github.com/pdiddy/novelty-engine/pkg/types"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

var analyzeCmd = &cobra.Command{
	Use:   "analyze <document>",
	Short: "Run the full novelty analysis pipeline on one document",
	Long: `Analyze parses the document, retrieves candidate sources from arXiv and
the web, extracts concept units from both sides, compares them in
embedding space, and prints the analysis report.

The default output is the wire JSON contract (overall_score,
internet_matches, explainability); --format yaml prints the full report
including per-concept alignments and degradation flags.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err := buildLogger(verbose)
		if err != nil {
			return err
		}
		defer logger.Sync()

		p, err := buildPipeline(cmd, logger)
		if err != nil {
			return err
		}

		report, err := p.Analyze(cmd.Context(), raw)
		if err != nil {
			return err
		}

		if noArchive, _ := cmd.Flags().GetBool("no-archive"); !noArchive {
			if id, archiveErr := archiveReport(archiveConfig(cmd), report); archiveErr != nil {
				logger.Warn("archiving report failed", zap.Error(archiveErr))
			} else {
				logger.Info("report archived", zap.Int64("id", id))
			}
		}

		format, _ := cmd.Flags().GetString("format")
		return writeReport(os.Stdout, report, format)
	},
}

func init() {
	analyzeCmd.Flags().String("format", "json", "output format: json (wire contract) or yaml (full report)")
	analyzeCmd.Flags().String("model", "", "Claude model for concept extraction")
	analyzeCmd.Flags().String("ollama-url", "", "Ollama base URL for embeddings")
	analyzeCmd.Flags().String("embed-model", "", "Ollama embedding model (default all-minilm)")
	analyzeCmd.Flags().Float64("threshold", 0.6, "minimum cosine similarity for a concept alignment")
	analyzeCmd.Flags().Int("max-candidates", 5, "maximum candidate sources to analyze")
	analyzeCmd.Flags().Int("concurrency", 5, "maximum concurrent candidate workers")
	analyzeCmd.Flags().Duration("timeout", 60*time.Second, "whole-run timeout")
	analyzeCmd.Flags().Bool("no-web", false, "disable the web search provider")
	analyzeCmd.Flags().Bool("no-ai", false, "skip the AI backend and use heuristic extraction")
	analyzeCmd.Flags().String("archive-dir", "", "directory for the report archive database (default reports)")
	analyzeCmd.Flags().Bool("no-archive", false, "do not archive the report")

	rootCmd.AddCommand(analyzeCmd)
}

// resolveConfig merges flags, config file values, and secrets into the
// typed pipeline configuration. Flags win over config file values, which
// win over secrets.
func resolveConfig(cmd *cobra.Command) types.PipelineConfig {
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	maxCandidates, _ := cmd.Flags().GetInt("max-candidates")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noWeb, _ := cmd.Flags().GetBool("no-web")
	noAI, _ := cmd.Flags().GetBool("no-ai")

	httpTimeout := viper.GetDuration("retrieval.timeout")
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("extraction.model")
	}
	if model == "" {
		model = defaultClaudeModel
	}
	apiKey := ""
	if !noAI {
		apiKey = secretDefault("anthropic-api-key", viper.GetString("extraction.api_key"))
	}

	ollamaURL, _ := cmd.Flags().GetString("ollama-url")
	if ollamaURL == "" {
		ollamaURL = secretDefault("ollama-base-url", viper.GetString("matching.ollama_base_url"))
	}
	embedModel, _ := cmd.Flags().GetString("embed-model")
	if embedModel == "" {
		embedModel = viper.GetString("matching.embedding_model")
	}

	enableArxiv := true
	if viper.IsSet("retrieval.enable_arxiv") {
		enableArxiv = viper.GetBool("retrieval.enable_arxiv")
	}
	webKey := secretDefault("tavily-api-key", viper.GetString("retrieval.web_api_key"))
	enableWeb := !noWeb && webKey != ""
	if enableWeb && viper.IsSet("retrieval.enable_web") {
		enableWeb = viper.GetBool("retrieval.enable_web")
	}

	return types.PipelineConfig{
		Ingest: types.IngestConfig{
			MinSectionWords: viper.GetInt("ingest.min_section_words"),
			MaxEquations:    viper.GetInt("ingest.max_equations"),
			MaxFigures:      viper.GetInt("ingest.max_figures"),
		},
		Retrieval: types.RetrievalConfig{
			HTTPConfig:      types.HTTPConfig{Timeout: httpTimeout, UserAgent: "novelty-engine/" + version},
			MaxCandidates:   maxCandidates,
			ProviderTimeout: 10 * time.Second,
			MaxRetries:      2,
			EnableArxiv:     enableArxiv,
			EnableWeb:       enableWeb,
			WebAPIKey:       webKey,
		},
		Extraction: types.ExtractionConfig{
			AIConfig:    types.AIConfig{Model: model, APIKey: apiKey, MaxRetries: 3},
			MaxConcepts: viper.GetInt("extraction.max_concepts"),
		},
		Matching: types.MatchConfig{
			OllamaBaseURL:  ollamaURL,
			EmbeddingModel: embedModel,
			Threshold:      threshold,
		},
		Scoring: types.ScoringConfig{
			TopK:          viper.GetInt("scoring.top_k"),
			RecencyWindow: viper.GetDuration("scoring.recency_window"),
		},
		Concurrency: concurrency,
		RunTimeout:  timeout,
	}
}

// archiveConfig resolves the archive location: flag, then config file,
// then the reports default.
func archiveConfig(cmd *cobra.Command) types.ArchiveConfig {
	dir, _ := cmd.Flags().GetString("archive-dir")
	if dir == "" {
		dir = viper.GetString("archive.dir")
	}
	if dir == "" {
		dir = "reports"
	}
	return types.ArchiveConfig{Dir: dir}
}

// buildPipeline assembles the pipeline from the resolved configuration.
func buildPipeline(cmd *cobra.Command, logger *zap.Logger) (*pipeline.Pipeline, error) {
	cfg := resolveConfig(cmd)

	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, fmt.Errorf("no container runtime for document conversion: %w", err)
	}
	extractor, err := ingest.NewMarkitdownExtractor(rt)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Retrieval.Timeout}

	var providers []retrieve.Provider
	if cfg.Retrieval.EnableArxiv {
		providers = append(providers, &retrieve.ArxivProvider{Client: httpClient})
	}
	if cfg.Retrieval.EnableWeb {
		providers = append(providers, &retrieve.WebProvider{Client: httpClient, APIKey: cfg.Retrieval.WebAPIKey})
	}

	var ai extract.AIBackend
	if cfg.Extraction.APIKey != "" {
		ai = &extract.ClaudeBackend{APIKey: cfg.Extraction.APIKey, Model: cfg.Extraction.Model, Client: httpClient}
	} else {
		logger.Warn("AI backend disabled, extraction will use the heuristic fallback")
	}

	embedder := match.NewOllamaEmbedder(
		cfg.Matching.OllamaBaseURL,
		cfg.Matching.EmbeddingModel,
		&http.Client{Timeout: 60 * time.Second})

	return &pipeline.Pipeline{
		Extractor: extractor,
		Providers: providers,
		AI:        ai,
		Embedder:  embedder,
		Fetcher: &retrieve.Fetcher{
			Client:    httpClient,
			UserAgent: cfg.Retrieval.UserAgent,
		},
		Config: cfg,
		Logger: logger,
	}, nil
}

func archiveReport(cfg types.ArchiveConfig, report *types.AnalysisReport) (int64, error) {
	store, err := archive.NewStore(cfg.Dir)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.Save(report)
}

// writeReport renders the report: wire JSON by default, full YAML on request.
func writeReport(w *os.File, report *types.AnalysisReport, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Wire())
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
