// Package logger provides structured logging functionality for the musicd project.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Multiple output formats (text, JSON, color)
//   - Thread-safe operations
//   - Configurable output and formatting
//
// Usage:
//
//	// Get a component logger
//	log := logger.WithComponent(logger.ComponentExtractor)
//
//	// Log messages with different levels
//	log.Info("Resolved stream", map[string]interface{}{
//		"videoId": "dQw4w9WgXcQ",
//		"source":  "youtube_music_api",
//	})
//
//	// Configure global logger
//	config := logger.DefaultConfig()
//	config.Level = logger.DEBUG
//	config.Format = logger.FormatJSON
//	logger.SetGlobalLogger(logger.New(config))
//
// Components:
//   - ComponentApp: Main application logs
//   - ComponentServer: HTTP API logs
//   - ComponentExtractor: Stream extraction strategy logs
//   - ComponentInnerTube: YouTube API logs
//   - ComponentCookies: Cookie authentication logs
//   - ComponentCache: Stream URL cache logs
//   - ComponentCipher: Signature decryption logs
//   - ComponentDownloader: Streaming proxy logs
//   - ComponentClient: HTTP client logs
//   - ComponentFormat: Format selection logs
//   - ComponentBotGuard: BotGuard verification logs
package logger
