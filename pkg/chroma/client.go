package chroma

import (
	"context"
	"fmt"
	"os"

	"codentor-backend/pkg/config"
	"codentor-backend/pkg/logger"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

const notesCollection = "notes"

// maxDocumentLength keeps documents inside the embedding model's token limit.
const maxDocumentLength = 10000

// ChromaClient indexes note text for semantic search, one document per note
// tagged with its owner.
type ChromaClient struct {
	client     chroma.Client
	collection chroma.Collection
}

func NewChromaClient(ctx context.Context, cfg *config.Config) (*ChromaClient, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for note embeddings")
	}

	// The embedding function reads its key from the environment.
	os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKey)

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	case cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	default:
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(ctx, notesCollection,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	logger.WithComponent("Chroma").WithField("collection", notesCollection).Info("[Chroma] Collection ready")

	return &ChromaClient{client: client, collection: collection}, nil
}

// UpsertNote replaces the indexed text for a note, keyed by note id.
func (c *ChromaClient) UpsertNote(ctx context.Context, noteID, userID, title, content string) error {
	text := fmt.Sprintf("Title: %s\n\n%s", title, content)
	if len(text) > maxDocumentLength {
		text = text[:maxDocumentLength]
	}

	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"user_id": userID,
		"note_id": noteID,
		"title":   title,
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = c.collection.Upsert(ctx,
		chroma.WithIDs(chroma.DocumentID(noteID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note embedding: %w", err)
	}
	return nil
}

// SearchNotes returns note ids ordered by distance, scoped to userID.
func (c *ChromaClient) SearchNotes(ctx context.Context, userID, query string, limit int) ([]string, error) {
	results, err := c.collection.Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(limit),
		chroma.WithWhereQuery(chroma.EqString("user_id", userID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []string{}, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(idGroups[0]))
	for _, id := range idGroups[0] {
		ids = append(ids, string(id))
	}

	logger.WithComponent("Chroma").WithFields(map[string]interface{}{
		"user_id": userID,
		"hits":    len(ids),
	}).Debug("[Chroma] Semantic search")
	return ids, nil
}

func (c *ChromaClient) DeleteNote(ctx context.Context, noteID string) error {
	if err := c.collection.Delete(ctx, chroma.WithIDsDelete(chroma.DocumentID(noteID))); err != nil {
		return fmt.Errorf("failed to delete note embedding: %w", err)
	}
	return nil
}
