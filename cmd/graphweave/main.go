// Command graphweave queries a knowledge graph for relevant triplets,
// either through the graph-triplet pipeline alone or through hybrid
// fusion over the vector, graph, and lexical channels.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/graphweave/graphweave/config"
	"github.com/graphweave/graphweave/embed"
	"github.com/graphweave/graphweave/fusion"
	"github.com/graphweave/graphweave/graph"
	"github.com/graphweave/graphweave/rerank"
	"github.com/graphweave/graphweave/retrieval"
	neo4jstore "github.com/graphweave/graphweave/store/neo4j"
	postgresstore "github.com/graphweave/graphweave/store/postgres"
	qdrantstore "github.com/graphweave/graphweave/store/qdrant"
)

// Build-time variables set via ldflags.
var (
	version = "0.1.0"
	commit  = ""
)

func versionString() string {
	if commit != "" {
		return fmt.Sprintf("graphweave version %s (commit: %s)", version, commit)
	}

	return fmt.Sprintf("graphweave version %s-dev", version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "graphweave",
		Short:        "Knowledge graph triplet retrieval",
		Version:      versionString(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(newTripletsCmd())
	rootCmd.AddCommand(newSearchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired retrieval stack for one command invocation.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	engine   *retrieval.Engine
	hybrid   *fusion.HybridRetriever
	shutdown []func()
}

func (a *app) close() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)

	a := &app{cfg: cfg, log: log}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	vectors, err := newVectorStore(cfg, embedder)
	if err != nil {
		return nil, err
	}

	source, lexical, err := a.newGraphSource(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	var reranker retrieval.Reranker
	if cfg.RerankerURL != "" {
		reranker = rerank.New(cfg.RerankerURL, nil)
	}

	a.engine = retrieval.NewEngine(source, vectors, reranker, retrieval.Options{
		TopK:               cfg.TopK,
		RelationCollection: retrieval.CollectionRelations,
		Threshold:          thresholdPolicy(cfg),
		MinQuality:         cfg.MinQuality,
		MaxPerType:         cfg.MaxPerType,
	}, log)

	var lexicalChannel fusion.Channel
	if lexical != nil {
		lexicalChannel = fusion.NewLexicalChannel(lexical)
	}

	a.hybrid = fusion.NewHybridRetriever(
		fusion.NewVectorChannel(vectors, retrieval.CollectionChunks),
		fusion.NewTripletChannel(a.engine),
		lexicalChannel,
		nil,
		log,
	)

	return a, nil
}

func newEmbedder(cfg *config.Config) (qdrantstore.Embedder, error) {
	if cfg.OpenAIKey.Value() != "" {
		clientCfg := openai.DefaultConfig(cfg.OpenAIKey.Value())
		if cfg.OpenAIBaseURL != "" {
			clientCfg.BaseURL = cfg.OpenAIBaseURL
		}

		return embed.NewOpenAI(openai.NewClientWithConfig(clientCfg), cfg.EmbeddingModel), nil
	}

	if cfg.OllamaURL != "" {
		return embed.NewOllama(cfg.OllamaURL, cfg.EmbeddingModel), nil
	}

	return nil, fmt.Errorf("no embedding provider configured")
}

func newVectorStore(cfg *config.Config, embedder qdrantstore.Embedder) (retrieval.VectorStore, error) {
	host, portStr, err := net.SplitHostPort(cfg.QdrantAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing QDRANT_ADDR: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing QDRANT_ADDR port: %w", err)
	}

	client, err := qdrantclient.NewClient(&qdrantclient.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.QdrantAPIKey.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	return qdrantstore.New(client, embedder), nil
}

// newGraphSource picks the configured graph backend. PostgreSQL also
// provides the lexical search channel; Neo4j does not.
func (a *app) newGraphSource(ctx context.Context) (graph.Source, fusion.TextSearcher, error) {
	if a.cfg.DatabaseURL.Value() != "" {
		pool, err := postgresstore.Connect(ctx, a.cfg.DatabaseURL.Value())
		if err != nil {
			return nil, nil, err
		}

		a.shutdown = append(a.shutdown, pool.Close)

		store := postgresstore.New(pool, a.log)

		return store, store, nil
	}

	if a.cfg.Neo4jURI != "" {
		store, err := neo4jstore.New(a.cfg.Neo4jURI, a.cfg.Neo4jUser, a.cfg.Neo4jPassword.Value(), a.log)
		if err != nil {
			return nil, nil, err
		}

		a.shutdown = append(a.shutdown, func() { store.Close() })

		return store, nil, nil
	}

	return nil, nil, fmt.Errorf("no graph store configured: set DATABASE_URL or NEO4J_URI")
}

func thresholdPolicy(cfg *config.Config) retrieval.ThresholdPolicy {
	policy := retrieval.DefaultThresholdPolicy()
	policy.Base = cfg.RelevanceThreshold

	return policy
}

type tripletOutput struct {
	Source   string  `json:"source"`
	Relation string  `json:"relation"`
	Target   string  `json:"target"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Quality  float64 `json:"quality"`
}

func newTripletsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triplets <query>",
		Short: "Retrieve relevant triplets from the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			triplets, err := a.engine.Retrieve(ctx, args[0])
			if err != nil {
				return err
			}

			out := make([]tripletOutput, len(triplets))
			for i, t := range triplets {
				out[i] = tripletOutput{
					Source:   t.Edge.Source.ID,
					Relation: t.Edge.Relation,
					Target:   t.Edge.Target.ID,
					Text:     retrieval.TripletText(t),
					Score:    t.Score,
					Quality:  t.Quality,
				}
			}

			return printJSON(out)
		},
	}

	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search across the vector, graph, and lexical channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.hybrid.Retrieve(ctx, args[0], limit)
			if err != nil {
				return err
			}

			return printJSON(results)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of fused results")

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
