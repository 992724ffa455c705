package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"videotranscriber/internal/app"
)

const transcriptPreviewChars = 500

// main is the application entry point
func main() {
	var (
		fileFlag     = flag.String("file", "", "Path to a local video file to transcribe")
		youtubeFlag  = flag.String("youtube", "", "YouTube URL to download and transcribe")
		outputFlag   = flag.String("output", "", "Transcript output path (default: <video>_transcript.txt)")
		languageFlag = flag.String("language", "", "Speech language as a BCP-47 tag, e.g. en-US")
		chunkFlag    = flag.Int("chunk", 0, "Segment length in seconds for recognition requests")
		helpFlag     = flag.Bool("help", false, "Show help message")
		versionFlag  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	if (*fileFlag == "") == (*youtubeFlag == "") {
		fmt.Fprintln(os.Stderr, "Error: provide exactly one of -file or -youtube")
		fmt.Fprintln(os.Stderr, "Run with -help for usage.")
		os.Exit(2)
	}

	opts := app.RunOptions{
		LocalPath:  *fileFlag,
		YouTubeURL: *youtubeFlag,
		OutputPath: *outputFlag,
		Language:   *languageFlag,
		ChunkSec:   *chunkFlag,
	}

	if err := runApplication(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// runApplication contains the core application logic that can be tested
func runApplication(opts app.RunOptions) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Video Transcriber starting up",
		zap.String("component", "main"),
		zap.String("version", "1.0"))

	application, err := app.NewApplication()
	if err != nil {
		logger.Error("Failed to create application",
			zap.Error(err),
			zap.String("component", "main"))
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
			zap.String("component", "main"))
		cancel()
	}()

	result, err := application.Run(ctx, opts)
	if err != nil {
		logger.Error("Application runtime error",
			zap.Error(err),
			zap.String("component", "main"))
		return fmt.Errorf("application runtime error: %w", err)
	}

	printTranscriptSummary(result)

	if err := application.Shutdown(); err != nil {
		return fmt.Errorf("application shutdown error: %w", err)
	}

	logger.Info("Video Transcriber finished successfully",
		zap.String("component", "main"),
		zap.String("folder", result.Job.Folder))
	return nil
}

// printTranscriptSummary prints a short preview of the transcript to stdout
func printTranscriptSummary(result *app.Result) {
	if result.Transcript == "" {
		fmt.Println("No speech was recognized in the video.")
		return
	}

	preview := result.Transcript
	runes := []rune(preview)
	if len(runes) > transcriptPreviewChars {
		preview = string(runes[:transcriptPreviewChars]) + "..."
	}

	fmt.Println("Transcript preview:")
	fmt.Println(preview)
	fmt.Printf("\nTotal transcript length: %d characters\n", len(result.Transcript))
	if result.Job.OutputPath != "" {
		fmt.Printf("Transcript saved to: %s\n", result.Job.OutputPath)
	}
}

// printHelp displays command line usage information
func printHelp() {
	fmt.Println("Video Transcriber - Speech Extraction from Video Files and YouTube")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    videotranscriber [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -file <path>       Transcribe a local video file")
	fmt.Println("    -youtube <url>     Download a YouTube video and transcribe it")
	fmt.Println("    -output <path>     Transcript output path (default: <video>_transcript.txt)")
	fmt.Println("    -language <tag>    Speech language, e.g. en-US (default from configuration)")
	fmt.Println("    -chunk <seconds>   Segment length for recognition requests (default 30)")
	fmt.Println("    -help              Show this help message")
	fmt.Println("    -version           Show version information")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Println("    Configuration is loaded from the file named by CONFIG_PATH when set,")
	fmt.Println("    otherwise from environment variables (FFMPEG_PATH, YTDLP_PATH,")
	fmt.Println("    RECOGNIZER_API_KEY, RECOGNIZER_LANGUAGE, CHUNK_DURATION_SEC, OUTPUT_ROOT).")
	fmt.Println("    See config.example.yaml for available options.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    videotranscriber -file lecture.mp4")
	fmt.Println("    videotranscriber -youtube https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	fmt.Println("    videotranscriber -file talk.mkv -language de-DE -chunk 20")
}

// printVersion displays version and build information
func printVersion() {
	fmt.Println("Video Transcriber")
	fmt.Println("Version: 1.0")
	fmt.Println("Architecture: Go 1.24 + FFmpeg + yt-dlp + Google Speech API")
}
