package network

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    pubsub "github.com/libp2p/go-libp2p-pubsub"
    "github.com/libp2p/go-libp2p/core/host"
    "github.com/libp2p/go-libp2p/core/peer"
)

// VoteState tracks the state of an active vote
type VoteState struct {
    Vote          *Vote
    Responses     map[peer.ID]*VoteResponse
    Deadline      time.Time
    complete      bool
}

// newQuorumManagerImpl creates a new quorum management system implementation
func newQuorumManagerImpl(ctx context.Context, h host.Host, ps *pubsub.PubSub, gm GossipManager) (*QuorumManagerImpl, error) {
    // Join quorum topic
    topic, err := ps.Join(QuorumTopic)
    if err != nil {
        return nil, err
    }

    // Subscribe to vote messages
    subscription, err := topic.Subscribe()
    if err != nil {
        return nil, err
    }

    qm := &QuorumManagerImpl{
        ctx:          ctx,
        host:         h,
        pubsub:       ps,
        topic:        topic,
        subscription: subscription,
        gossipMgr:    gm,
        activeVotes:  make(map[string]*VoteState),
        peerRep:      make(map[peer.ID]int),
        voteResults:  make(map[string]bool),
        voteComplete: make(chan *Vote, 100),
        peerBanned:   make(chan peer.ID, 100),
        fileRemoved:  make(chan string, 100),
    }

    // Start vote handling
    go qm.handleVotes()
    go qm.processVoteResults()

    return qm, nil
}

// QuorumManagerImpl implements the QuorumManager interface
type QuorumManagerImpl struct {
    ctx          context.Context
    host         host.Host
    pubsub       *pubsub.PubSub
    topic        *pubsub.Topic
    subscription *pubsub.Subscription
    gossipMgr    GossipManager

    // Voting state
    activeVotes map[string]*VoteState
    peerRep     map[peer.ID]int   // Peer reputation scores
    voteResults map[string]bool   // Track vote results for quick lookup
    mu          sync.RWMutex

    // Channels
    voteComplete chan *Vote
    peerBanned   chan peer.ID
    fileRemoved  chan string
}

// Start implements the QuorumManager interface
func (qm *QuorumManagerImpl) Start() error {
    return nil
}

// Stop implements the QuorumManager interface
func (qm *QuorumManagerImpl) Stop() error {
    return nil
}

// ProposeVote initiates a new network vote
func (qm *QuorumManagerImpl) ProposeVote(voteType VoteType, target string, reason string, evidence []byte) error {
    // Check if we have enough peers for a valid quorum
    peers := qm.gossipMgr.GetPeers()
    if len(peers) < MinQuorumSize {
        return fmt.Errorf("insufficient peers for quorum: need %d, have %d", MinQuorumSize, len(peers))
    }

    vote := &Vote{
        ID:        fmt.Sprintf("%s-%d", target, time.Now().UnixNano()),
        Type:      voteType,
        Target:    target,
        Reason:    reason,
        Evidence:  evidence,
        Timestamp: time.Now(),
        Proposer:  qm.host.ID(),
    }

    // Initialize vote state
    voteState := &VoteState{
        Vote:      vote,
        Responses: make(map[peer.ID]*VoteResponse),
        Deadline:  time.Now().Add(VotingTimeout),
    }

    // Register active vote
    qm.mu.Lock()
    qm.activeVotes[vote.ID] = voteState
    qm.mu.Unlock()

    // Broadcast vote proposal
    data, err := json.Marshal(vote)
    if err != nil {
        return fmt.Errorf("failed to marshal vote: %w", err)
    }

    return qm.topic.Publish(qm.ctx, data)
}

// handleVotes processes incoming vote messages
func (qm *QuorumManagerImpl) handleVotes() {
    for {
        msg, err := qm.subscription.Next(qm.ctx)
        if err != nil {
            if qm.ctx.Err() != nil {
                return
            }
            continue
        }

        // Handle vote proposal or response
        if isVoteResponse(msg.Data) {
            var resp VoteResponse
            if err := json.Unmarshal(msg.Data, &resp); err != nil {
                continue
            }
            qm.processVoteResponse(&resp)
        } else {
            var vote Vote
            if err := json.Unmarshal(msg.Data, &vote); err != nil {
                continue
            }
            qm.processNewVote(&vote)
        }
    }
}

// processNewVote handles a new vote proposal
func (qm *QuorumManagerImpl) processNewVote(vote *Vote) {
    qm.mu.Lock()
    defer qm.mu.Unlock()

    // Skip if we've already seen this vote
    if _, exists := qm.activeVotes[vote.ID]; exists {
        return
    }

    // Validate vote based on type
    response := &VoteResponse{
        VoteID:    vote.ID,
        Voter:     qm.host.ID(),
        Timestamp: time.Now(),
    }

    switch vote.Type {
    case VoteRemovePeer:
        response.Approve = qm.validatePeerRemoval(vote)
    case VoteRemoveFile:
        response.Approve = qm.validateFileRemoval(vote)
    case VoteUpdateRules:
        response.Approve = qm.validateRuleUpdate(vote)
    }

    // Send vote response
    data, err := json.Marshal(response)
    if err != nil {
        return
    }
    qm.topic.Publish(qm.ctx, data)

    // Track vote locally
    qm.activeVotes[vote.ID] = &VoteState{
        Vote:      vote,
        Responses: make(map[peer.ID]*VoteResponse),
        Deadline:  time.Now().Add(VotingTimeout),
    }
}

// processVoteResponse handles an incoming vote response
func (qm *QuorumManagerImpl) processVoteResponse(resp *VoteResponse) {
    qm.mu.Lock()
    defer qm.mu.Unlock()

    voteState, exists := qm.activeVotes[resp.VoteID]
    if !exists || voteState.complete {
        return
    }

    // Record vote with weight
    totalWeight := 0
    approvalWeight := 0
    for _, v := range voteState.Responses {
        if v.IsStorer {
            totalWeight += StorerVoteWeight
            if v.Approve {
                approvalWeight += StorerVoteWeight
            }
        } else {
            totalWeight += BaseVoteWeight
            if v.Approve {
                approvalWeight += BaseVoteWeight
            }
        }
    }

    // Add new vote
    voteState.Responses[resp.Voter] = resp

    // Check if we have enough weighted votes
    totalPeers := len(qm.gossipMgr.GetPeers())
    
    minRequiredWeight := (totalPeers * BaseVoteWeight * MinVotingPercentage) / 100

    if totalWeight >= minRequiredWeight {
        // Calculate result using weighted votes
        passed := (approvalWeight * 100 / totalWeight) >= MinVotingPercentage
        voteState.complete = true
        qm.voteResults[resp.VoteID] = passed

        // Signal vote completion
        qm.voteComplete <- voteState.Vote
    }
}

// validatePeerRemoval checks if a peer should be removed
func (qm *QuorumManagerImpl) validatePeerRemoval(vote *Vote) bool {
    // Check if peer has poor reputation
    if rep, exists := qm.peerRep[peer.ID(vote.Target)]; exists {
        if rep <= ReputationThreshold {
            return true
        }
    }

    // Validate evidence if provided
    if len(vote.Evidence) > 0 {
        // TODO: Implement evidence validation (e.g., cryptographic proof of bad behavior)
        return true
    }

    return false
}

// validateFileRemoval checks if a file should be removed
func (qm *QuorumManagerImpl) validateFileRemoval(vote *Vote) bool {
    // TODO: Implement file content validation
    return true
}

// validateRuleUpdate checks if a rule update should be approved
func (qm *QuorumManagerImpl) validateRuleUpdate(vote *Vote) bool {
    // TODO: Implement rule update validation
    return false
}

// processVoteResults handles completed votes
func (qm *QuorumManagerImpl) processVoteResults() {
    for {
        select {
        case <-qm.ctx.Done():
            return
        case vote := <-qm.voteComplete:
            qm.mu.RLock()
            passed := qm.voteResults[vote.ID]
            qm.mu.RUnlock()

            if passed {
                switch vote.Type {
                case VoteRemovePeer:
                    qm.peerBanned <- peer.ID(vote.Target)
                case VoteRemoveFile:
                    qm.fileRemoved <- vote.Target
                case VoteUpdateRules:
                    // TODO: Implement rule updates
                }
            }
        }
    }
}

// UpdatePeerReputation adjusts a peer's reputation score
func (qm *QuorumManagerImpl) UpdatePeerReputation(id peer.ID, delta int) error {
    qm.mu.Lock()
    defer qm.mu.Unlock()

    current := qm.peerRep[id]
    updated := current + delta

    // Clamp reputation to valid range
    if updated > MaxReputation {
        updated = MaxReputation
    } else if updated <= ReputationThreshold {
        // Initiate removal vote if reputation drops too low
        go qm.ProposeVote(VoteRemovePeer, string(id), "Low reputation score", nil)
    }

    qm.peerRep[id] = updated
    return nil
}

// isVoteResponse determines if a message is a vote response
func isVoteResponse(data []byte) bool {
    var msg struct {
        VoteID string `json:"vote_id"`
    }
    return json.Unmarshal(data, &msg) == nil && msg.VoteID != ""
}

// StartVote implements the QuorumManager interface
func (qm *QuorumManagerImpl) StartVote(voteType VoteType, target string, proposer peer.ID) error {
    return qm.ProposeVote(voteType, target, "Vote initiated by "+proposer.String(), nil)
}
