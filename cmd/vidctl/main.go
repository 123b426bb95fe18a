// Command vidctl runs operator tasks against the processing pipeline:
// registering files already in storage, listing, deleting, and recovering
// videos stuck in Processing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/vidstream/vidstream-processing-service/internal/bootstrap"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"github.com/vidstream/vidstream-processing-service/internal/infra/config"
	"github.com/vidstream/vidstream-processing-service/internal/usecase"
	"github.com/vidstream/vidstream-processing-service/pkg/logger"
	"go.uber.org/zap"
)

const usage = `usage: vidctl <command> [flags]

commands:
  register  -source KEY -mime TYPE -size BYTES [-title T] [-original NAME]
  list
  playback  -id UUID
  delete    -id UUID
  recover

actor flags (all commands but recover): -user ID -tenant ID -role Admin|Editor|Viewer`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "vidctl:", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	user := fs.String("user", "", "acting user id")
	tenant := fs.String("tenant", "", "acting tenant id")
	role := fs.String("role", string(entity.RoleEditor), "acting role")
	id := fs.String("id", "", "video id")
	source := fs.String("source", "", "storage location of the uploaded file")
	title := fs.String("title", "", "video title")
	original := fs.String("original", "", "original filename (defaults to the source base name)")
	mime := fs.String("mime", "video/mp4", "mime type")
	size := fs.Int64("size", 0, "file size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	actor := entity.Actor{UserID: *user, TenantID: *tenant, Role: entity.Role(*role)}
	manage := usecase.NewManageVideosUseCase(app.Repo, app.Storage, app.Notifier, log)

	switch command {
	case "register":
		if *source == "" {
			return fmt.Errorf("register: -source is required")
		}
		name := path.Base(*source)
		if *original == "" {
			*original = name
		}
		uc := usecase.NewRegisterUploadUseCase(app.Repo, app.Queue, app.Notifier, log)
		video, err := uc.Execute(ctx, actor, usecase.UploadInput{
			Title:            *title,
			OriginalFilename: *original,
			Filename:         name,
			SourcePath:       *source,
			MimeType:         *mime,
			Size:             *size,
		})
		if err != nil {
			return err
		}
		return printJSON(entity.NewVideoView(video))

	case "list":
		videos, err := manage.List(ctx, actor)
		if err != nil {
			return err
		}
		views := make([]entity.VideoView, 0, len(videos))
		for _, v := range videos {
			views = append(views, entity.NewVideoView(v))
		}
		return printJSON(views)

	case "playback", "delete":
		videoID, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("%s: invalid -id: %w", command, err)
		}
		if command == "delete" {
			return manage.Delete(ctx, actor, videoID)
		}
		location, err := manage.PlaybackLocation(ctx, actor, videoID)
		if err != nil {
			return err
		}
		fmt.Println(location)
		return nil

	case "recover":
		n, err := usecase.NewRecoverStalledUseCase(app.Repo, app.Queue, log, cfg.StalledAfter).Execute(ctx)
		if err != nil {
			return err
		}
		log.Info("recovery finished", zap.Int("requeued", n))
		return nil
	}

	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
