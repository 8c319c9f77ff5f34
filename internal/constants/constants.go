// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort          = "8080"
	DefaultDBName        = "recshelf.db"
	DefaultLockName      = "recshelf.lock"
	DefaultProber        = ProberAuto
	DefaultFFProbePath   = "ffprobe"
	DefaultProbeWorkers  = 1
	DefaultSyncInterval  = 15 * time.Minute
	DefaultWatchDebounce = 3 * time.Second
	DefaultLockRetry     = 250 * time.Millisecond
	DefaultLockWait      = 10 * time.Second
	DefaultShutdownWait  = 5 * time.Second
	DefaultEnvPrefix     = "RECSHELF"
	DefaultAppDirName    = "recshelf"
)

// Prober kinds
const (
	ProberAuto    = "auto"
	ProberFFProbe = "ffprobe"
	ProberNative  = "native"
)

// FingerprintWindow is the number of leading bytes hashed into a fingerprint.
const FingerprintWindow = 1 << 20 // 1 MiB

// FingerprintHexLength is the length of a rendered fingerprint.
const FingerprintHexLength = 64

// File Extensions
const (
	ExtWAV  = ".wav"
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtM4A  = ".m4a"
	ExtOGG  = ".ogg"
	ExtOPUS = ".opus"
	ExtWEBM = ".webm"
)

// SupportedExtensions lists the audio file extensions picked up by a sync scan.
var SupportedExtensions = []string{ExtWAV, ExtMP3, ExtFLAC, ExtM4A, ExtOGG, ExtOPUS, ExtWEBM}

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Listing
const (
	DefaultPageSize = 30
	MaxPageSize     = 200
	MaxHistoryItems = 20
)
