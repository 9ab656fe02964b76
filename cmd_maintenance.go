package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/config"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/ghost"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// buildGhostClient wires only what the maintenance commands need.
func buildGhostClient() (*ghost.Client, logger.Logger, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, err
	}
	appLog, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	client, err := ghost.NewClient(cfg.Ghost, appLog.With(logger.String("component", "ghost")))
	if err != nil {
		return nil, nil, fmt.Errorf("create ghost client: %w", err)
	}
	return client, appLog, nil
}

// runPurgePosts deletes every post on the blog. It exists as a testing aid
// for clearing out prompt experiments; there is no confirmation prompt, so
// point it at the right blog.
func runPurgePosts() {
	client, appLog, err := buildGhostClient()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer appLog.Sync()

	ctx := context.Background()
	posts, err := client.ListPosts(ctx)
	if err != nil {
		appLog.Error("list posts failed", logger.Error(err))
		os.Exit(1)
	}

	removed := 0
	for _, post := range posts {
		if err := client.DeletePost(ctx, post.ID); err != nil {
			appLog.Error("delete failed",
				logger.String("post_id", post.ID),
				logger.String("title", post.Title),
				logger.Error(err),
			)
			continue
		}
		removed++
		appLog.Info("post removed", logger.String("post_id", post.ID))
	}
	appLog.Info("purge complete",
		logger.Int("removed", removed),
		logger.Int("total", len(posts)),
	)
}

// runSetVisibility bulk-updates the visibility of every existing post.
// Visibility comes from the first extra argument, defaulting to "members".
func runSetVisibility() {
	visibility := "members"
	if len(os.Args) > 2 {
		visibility = os.Args[2]
	}

	client, appLog, err := buildGhostClient()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer appLog.Sync()

	ctx := context.Background()
	posts, err := client.ListPosts(ctx)
	if err != nil {
		appLog.Error("list posts failed", logger.Error(err))
		os.Exit(1)
	}

	updated := 0
	for _, post := range posts {
		if post.Visibility == visibility {
			continue
		}
		if err := client.UpdatePostVisibility(ctx, post.ID, post.UpdatedAt, visibility); err != nil {
			appLog.Error("update failed",
				logger.String("post_id", post.ID),
				logger.String("title", post.Title),
				logger.Error(err),
			)
			continue
		}
		updated++
	}
	appLog.Info("visibility update complete",
		logger.Int("updated", updated),
		logger.Int("total", len(posts)),
		logger.String("visibility", visibility),
	)
}
