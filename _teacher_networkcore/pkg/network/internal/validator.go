package internal

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "sync"

    "github.com/libp2p/go-libp2p/core/peer"
)

// chunkValidator implements the Validator interface
type chunkValidator struct {
    ctx       context.Context
    quorum    *quorumManager
    store     *chunkStore
    cache     map[string]ValidationResult
    mu        sync.RWMutex
    maxErrors int
    errors    map[peer.ID]int
}

func newChunkValidator(ctx context.Context, quorum *quorumManager, store *chunkStore) *chunkValidator {
    return &chunkValidator{
        ctx:       ctx,
        quorum:    quorum,
        store:     store,
        cache:     make(map[string]ValidationResult),
        maxErrors: 3,
        errors:    make(map[peer.ID]int),
    }
}

// ValidateChunk implements the Validator interface
func (cv *chunkValidator) ValidateChunk(data []byte, hash string, owner peer.ID) ValidationResult {
    // Check cache first
    cv.mu.RLock()
    if result, exists := cv.cache[hash]; exists {
        cv.mu.RUnlock()
        return result
    }
    cv.mu.RUnlock()

    // Validate the chunk
    result := cv.validateChunkData(data, hash)

    // Cache the result
    cv.mu.Lock()
    cv.cache[hash] = result
    cv.mu.Unlock()

    // Handle validation failure
    if result != ValidationSuccess {
        cv.handleValidationFailure(owner, result)
    }

    return result
}

func (cv *chunkValidator) validateChunkData(data []byte, hash string) ValidationResult {
    // Check basic validity
    if len(data) == 0 {
        return ValidationInvalidSize
    }
    if len(data) > DefaultMaxChunkSize {
        return ValidationInvalidSize
    }

    // Verify hash
    hasher := sha256.New()
    hasher.Write(data)
    computedHash := hex.EncodeToString(hasher.Sum(nil))
    if computedHash != hash {
        return ValidationInvalidHash
    }

    // TODO: Implement additional validation checks
    // - Signature verification
    // - Content validation
    // - Format checks

    return ValidationSuccess
}

func (cv *chunkValidator) handleValidationFailure(owner peer.ID, result ValidationResult) {
    cv.mu.Lock()
    defer cv.mu.Unlock()

    // Increment error count for peer
    cv.errors[owner]++

    // Check if peer should be banned
    if cv.errors[owner] >= cv.maxErrors {
        // Report peer to quorum for potential removal
        cv.quorum.ProposeVote(VoteRemovePeer, string(owner), fmt.Sprintf("validation failures: %v", result), nil)
        delete(cv.errors, owner) // Reset counter
    }

    // Update peer reputation
    cv.quorum.UpdatePeerReputation(owner, -1)
}

// Helper methods for managing validation state

func (cv *chunkValidator) clearCache() {
    cv.mu.Lock()
    cv.cache = make(map[string]ValidationResult)
    cv.mu.Unlock()
}

func (cv *chunkValidator) resetErrors(peerID peer.ID) {
    cv.mu.Lock()
    delete(cv.errors, peerID)
    cv.mu.Unlock()
}

func (cv *chunkValidator) getErrorCount(peerID peer.ID) int {
    cv.mu.RLock()
    defer cv.mu.RUnlock()
    return cv.errors[peerID]
}

func (cv *chunkValidator) isCached(hash string) bool {
    cv.mu.RLock()
    _, exists := cv.cache[hash]
    cv.mu.RUnlock()
    return exists
}

func (cv *chunkValidator) validateFormat(data []byte) ValidationResult {
    // TODO: Implement format-specific validation
    // This could check file headers, structure, etc.
    return ValidationSuccess
}

func (cv *chunkValidator) validateSignature(data []byte, signature []byte, publicKey []byte) ValidationResult {
    // TODO: Implement signature verification
    // This would verify the chunk is signed by the claimed owner
    return ValidationSuccess
}
