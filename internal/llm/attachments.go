package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"lexgate/internal/domain/models"
)

// uploadTimeout bounds one background file upload plus its vector-store
// association.
const uploadTimeout = 60 * time.Second

// VectorStoreSink uploads text-like attachments to the provider and attaches
// them to the tenant's vector store so retrieval can see them on later turns.
// Forward runs in the caller's goroutine; failures are logged, never surfaced,
// since indexing is best effort and the turn already carries an inline
// preview.
type VectorStoreSink struct {
	client openai.Client
	logger *slog.Logger
}

func NewVectorStoreSink(apiKey string, logger *slog.Logger) *VectorStoreSink {
	return &VectorStoreSink{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

// Forward uploads one attachment and links it into vectorStoreID. The file
// name is prefixed with the user id so uploads from different users stay
// distinguishable in the store.
func (s *VectorStoreSink) Forward(userID, vectorStoreID string, att models.Attachment) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	name := fmt.Sprintf("%s_%s", userID, att.Name)
	file, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(strings.NewReader(att.Content), name, att.MIMEType),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		s.logger.Warn("attachment upload failed", "attachment", att.Name, "error", err)
		return
	}

	_, err = s.client.VectorStores.Files.New(ctx, vectorStoreID, openai.VectorStoreFileNewParams{
		FileID: file.ID,
	})
	if err != nil {
		s.logger.Warn("vector store association failed",
			"attachment", att.Name, "file_id", file.ID, "vector_store_id", vectorStoreID, "error", err)
		return
	}

	s.logger.Info("attachment indexed",
		"attachment", att.Name, "file_id", file.ID, "vector_store_id", vectorStoreID)
}
