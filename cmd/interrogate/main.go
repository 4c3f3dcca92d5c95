package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	adaptlive "github.com/ritz-devbox/decisiv/adapters/live"
	adaptmedia "github.com/ritz-devbox/decisiv/adapters/media"
	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/internal/audio"
	"github.com/ritz-devbox/decisiv/internal/live"
	"github.com/ritz-devbox/decisiv/internal/media"
)

const defaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"

func main() {
	godotenv.Load()

	headline := flag.String("decision", "", "decision under interrogation")
	simpleHeadline := flag.String("simple-decision", "", "plain-language variant of the decision")
	simplified := flag.Bool("simplified", false, "use the plain advisor persona")
	model := flag.String("model", defaultLiveModel, "live model to connect to")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *headline == "" {
		fmt.Fprintln(os.Stderr, "usage: interrogate -decision \"...\" [-simple-decision \"...\"] [-simplified]")
		os.Exit(2)
	}
	if *simpleHeadline == "" {
		*simpleHeadline = *headline
	}

	if err := adaptmedia.Init(); err != nil {
		logger.Fatal("Audio subsystem unavailable", zap.Error(err))
	}
	defer func() {
		if err := adaptmedia.Terminate(); err != nil {
			logger.Warn("Audio subsystem teardown failed", zap.Error(err))
		}
	}()

	channel, err := adaptlive.NewChannel(adaptlive.ChannelConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
	}, logger)
	if err != nil {
		logger.Fatal("Invalid live channel config", zap.Error(err))
	}

	mic := adaptmedia.NewMicrophone(logger)
	camera := adaptmedia.NewFrameHolder()
	capture := media.NewCapture(mic, camera, logger)
	sinkFactory := func() (audio.Sink, error) {
		return adaptmedia.NewPlaybackSink(logger), nil
	}

	controller := live.NewController(channel, capture, sinkFactory, clock.New(), logger, live.Config{
		Model:          *model,
		Headline:       *headline,
		SimpleHeadline: *simpleHeadline,
		Simplified:     *simplified,
	})

	ctx := context.Background()
	if err := controller.Connect(ctx, ""); err != nil {
		logger.Fatal("Failed to connect", zap.Error(err))
	}
	fmt.Println("Session live. Commands: frame <path>, video, artifact, quit")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go printTranscript(controller, quit)
	go readCommands(ctx, controller, camera, quit)

	<-quit
	controller.Disconnect()
	fmt.Println("Session closed.")
}

// printTranscript tails the committed conversation turns.
func printTranscript(controller *live.Controller, quit chan os.Signal) {
	seen := 0
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		entries := controller.Transcript()
		for ; seen < len(entries); seen++ {
			printEntry(entries[seen])
		}
		if controller.Status().Terminal() {
			quit <- syscall.SIGTERM
			return
		}
	}
}

func printEntry(entry entities.TranscriptEntry) {
	label := "you"
	if entry.Role == entities.TranscriptModel {
		label = "core"
	}
	fmt.Printf("[%s] %s\n", label, entry.Text)
}

func readCommands(ctx context.Context, controller *live.Controller, camera *adaptmedia.FrameHolder, quit chan os.Signal) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "quit":
			quit <- syscall.SIGTERM
			return
		case "frame":
			if err := loadFrame(camera, strings.TrimSpace(arg)); err != nil {
				fmt.Println("frame:", err)
			}
		case "video":
			if err := controller.ToggleVideo(ctx); err != nil {
				fmt.Println("video:", err)
			}
		case "artifact":
			if err := controller.AnalyzeArtifact(); err != nil {
				fmt.Println("artifact:", err)
			}
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

// loadFrame feeds an image file into the frame source, standing in for a
// camera.
func loadFrame(camera *adaptmedia.FrameHolder, path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	camera.SetFrame(img)
	return nil
}
