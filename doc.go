// Package peerage coordinates a cluster of chat-bot worker peers that share
// one logical workload.
//
// Several bot processes ("peers") sit in the same guilds behind different
// bot accounts. For every guild exactly one peer handles commands and owns
// the long-lived voice session; the others stay silent. When the owning peer
// is busy or unavailable, ownership fails over deterministically to the
// lowest-ID available secondary.
//
// # Architecture
//
// The cluster is built from five cooperating components:
//
//   - Lock table: an expiring per-guild mutex. Lock acquisition is the only
//     authoritative routing gate; everything else is advisory.
//   - Assignment store: durable guild-to-peer ownership rows in NATS
//     JetStream KV, updated with revision-checked optimistic concurrency.
//   - Health monitor: a heartbeat loop recomputing each peer's status from
//     gateway readiness and session load, with staleness detection.
//   - Balancer: sticky assignment with pluggable selection strategies
//     (priority or least-loaded).
//   - Router: an ordered ladder of named rules every peer evaluates
//     independently for every command; first match wins.
//
// # Usage
//
//	cfg := peerage.DefaultConfig()
//	cfg.Peers = []peerage.PeerConfig{
//	    {ID: "peer-1", Name: "main", ExternalID: "109…", Primary: true},
//	    {ID: "peer-2", Name: "backup", ExternalID: "110…"},
//	}
//
//	cluster, err := peerage.NewCluster(&cfg, nc, gateway, engine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cluster.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer cluster.Stop(context.Background())
//
//	// In each worker's command handler:
//	peer, _ := cluster.Peer("peer-1")
//	if peer.ShouldHandle(ctx, peerage.Command{
//	    GuildID:          guildID,
//	    SessionCommand:   true,
//	    RequesterChannel: channelID,
//	}) {
//	    session, err := peer.BeginSession(ctx, guildID, channelID)
//	    // …
//	}
//
// The gateway connection and the voice engine stay behind the Gateway and
// SessionEngine interfaces; peerage only does coordination and bookkeeping.
package peerage
