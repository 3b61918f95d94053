// internal/archive/archive.go
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Archiver exports session transcripts to zstd-compressed archives and reads
// them back. Source files are never mutated.
type Archiver struct {
	baseDir string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Manifest describes one exported session.
type Manifest struct {
	SessionID  string    `json:"session_id"`
	ExportedAt time.Time `json:"exported_at"`
	AgentIDs   []string  `json:"agent_ids,omitempty"`
}

// New creates an Archiver rooted at baseDir.
func New(baseDir string, compressionLevel int) *Archiver {
	encoder, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	decoder, _ := zstd.NewReader(nil)

	return &Archiver{
		baseDir: baseDir,
		encoder: encoder,
		decoder: decoder,
	}
}

func (a *Archiver) sessionDir(sessionID string) string {
	return filepath.Join(a.baseDir, sessionID)
}

// Export copies a session transcript and its agent sub-logs into a
// compressed archive directory and writes a manifest beside them.
func (a *Archiver) Export(sessionID, sessionPath string, agentPaths map[string]string) (*Manifest, error) {
	dir := a.sessionDir(sessionID)
	if err := os.MkdirAll(filepath.Join(dir, "agents"), 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	if err := a.compressFile(sessionPath, filepath.Join(dir, "transcript.jsonl.zst")); err != nil {
		return nil, fmt.Errorf("export transcript: %w", err)
	}

	manifest := &Manifest{SessionID: sessionID, ExportedAt: time.Now().UTC()}
	for agentID, path := range agentPaths {
		dest := filepath.Join(dir, "agents", "agent-"+agentID+".jsonl.zst")
		if err := a.compressFile(path, dest); err != nil {
			return nil, fmt.Errorf("export agent log %s: %w", agentID, err)
		}
		manifest.AgentIDs = append(manifest.AgentIDs, agentID)
	}
	sort.Strings(manifest.AgentIDs)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestJSON, 0644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return manifest, nil
}

// ReadManifest loads the manifest of an exported session.
func (a *Archiver) ReadManifest(sessionID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(a.sessionDir(sessionID), "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// ReadTranscript decompresses an exported session transcript.
func (a *Archiver) ReadTranscript(sessionID string) ([]byte, error) {
	return a.decompressFile(filepath.Join(a.sessionDir(sessionID), "transcript.jsonl.zst"))
}

// ReadAgentLog decompresses an exported agent sub-log.
func (a *Archiver) ReadAgentLog(sessionID, agentID string) ([]byte, error) {
	return a.decompressFile(filepath.Join(a.sessionDir(sessionID), "agents", "agent-"+agentID+".jsonl.zst"))
}

func (a *Archiver) compressFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	compressed := a.encoder.EncodeAll(data, nil)
	return os.WriteFile(dest, compressed, 0644)
}

func (a *Archiver) decompressFile(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.decoder.DecodeAll(compressed, nil)
}
