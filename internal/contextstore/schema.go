package contextstore

import (
	"context"
	"fmt"
	"time"

	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Bootstrap ensures the ConversationTurn class exists. Vectors are supplied
// by the caller, so the class vectorizer is "none".
func Bootstrap(ctx context.Context, baseURL string) error {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	turn := &models.Class{
		Class:      turnClass,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "turnId", DataType: []string{"uuid"}},
			{Name: "userId", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "descriptor", DataType: []string{"text"}},
			{Name: "ts", DataType: []string{"date"}},
		},
	}

	if err := ensureClass(cctx, cl, turn); err != nil {
		return fmt.Errorf("bootstrap %s: %w", turnClass, err)
	}
	return nil
}

func ensureClass(ctx context.Context, cl *weaviate.Client, desired *models.Class) error {
	ex, err := cl.Schema().ClassGetter().WithClassName(desired.Class).Do(ctx)
	if err == nil && ex != nil {
		return nil
	}
	if err := cl.Schema().ClassCreator().WithClass(desired).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", desired.Class, err)
	}
	return nil
}
