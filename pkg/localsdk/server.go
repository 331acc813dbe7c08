/*
 * Copyright 2025 Scrayos UG (haftungsbeschränkt)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package localsdk provides an in-memory stand-in for the Agones sidecar.
// It implements the stable, alpha and beta SDK services against local state
// so game servers can be developed and tested without a cluster. It is not
// the production sidecar: nothing is persisted and no pod is ever touched.
package localsdk

import (
	"context"
	"io"
	"sync"

	sdk "agones.dev/agones/pkg/sdk"
	alpha "agones.dev/agones/pkg/sdk/alpha"
	beta "agones.dev/agones/pkg/sdk/beta"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// watchBufferSize is the number of pending updates a single watcher may lag
// behind before further updates are dropped for it.
const watchBufferSize = 16

// playerCapacityMessage mirrors the exact fault description the real
// sidecar uses when the player registry is full. Client-side translation
// matches on this string, so it must not be reworded independently.
const playerCapacityMessage = "Players are already at capacity"

// Counter is the state of a single counter resource.
type Counter struct {
	// Count is the current count, always within [0, Capacity].
	Count int64
	// Capacity is the upper bound for Count.
	Capacity int64
}

// List is the state of a single list resource.
type List struct {
	// Capacity is the upper bound for the number of values.
	Capacity int64
	// Values are the unique values of the list.
	Values []string
}

// Config seeds the initial state of a local sidecar.
type Config struct {
	// PlayerCapacity is the initial capacity of the player registry.
	PlayerCapacity int64
	// Counters are the counter resources known to the sidecar.
	Counters map[string]Counter
	// Lists are the list resources known to the sidecar.
	Lists map[string]List
}

// Server is an in-memory Agones sidecar.
type Server struct {
	logger *log.Entry

	mu             sync.Mutex
	gs             *sdk.GameServer
	players        []string
	playerCapacity int64
	counters       map[string]*Counter
	lists          map[string]*List
	watchers       map[int]chan *sdk.GameServer
	nextWatcherID  int
	healthPings    int
}

// NewServer creates a local sidecar seeded with the given config.
func NewServer(logger *log.Logger, cfg Config) *Server {
	counters := make(map[string]*Counter, len(cfg.Counters))
	for name, c := range cfg.Counters {
		counter := c
		counters[name] = &counter
	}
	lists := make(map[string]*List, len(cfg.Lists))
	for name, l := range cfg.Lists {
		list := List{Capacity: l.Capacity, Values: append([]string(nil), l.Values...)}
		lists[name] = &list
	}

	return &Server{
		logger: logger.WithFields(log.Fields{
			"component": "localsdk",
		}),
		gs: &sdk.GameServer{
			ObjectMeta: &sdk.GameServer_ObjectMeta{
				Name:        "local",
				Namespace:   "default",
				Labels:      map[string]string{},
				Annotations: map[string]string{},
			},
			Status: &sdk.GameServer_Status{
				State: "Scheduled",
			},
		},
		playerCapacity: cfg.PlayerCapacity,
		counters:       counters,
		lists:          lists,
		watchers:       map[int]chan *sdk.GameServer{},
	}
}

// Register registers all three SDK services on the given gRPC server.
func (s *Server) Register(g *grpc.Server) {
	sdk.RegisterSDKServer(g, &stableService{s: s})
	alpha.RegisterSDKServer(g, &alphaService{s: s})
	beta.RegisterSDKServer(g, &betaService{s: s})
}

// GameServer returns a snapshot of the current game-server state.
func (s *Server) GameServer() *sdk.GameServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetGameServer replaces the game-server state and notifies all watchers.
// The player registry, counters and lists are unaffected.
func (s *Server) SetGameServer(gs *sdk.GameServer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gs = proto.Clone(gs).(*sdk.GameServer)
	if s.gs.ObjectMeta == nil {
		s.gs.ObjectMeta = &sdk.GameServer_ObjectMeta{}
	}
	if s.gs.ObjectMeta.Labels == nil {
		s.gs.ObjectMeta.Labels = map[string]string{}
	}
	if s.gs.ObjectMeta.Annotations == nil {
		s.gs.ObjectMeta.Annotations = map[string]string{}
	}
	if s.gs.Status == nil {
		s.gs.Status = &sdk.GameServer_Status{}
	}
	s.broadcastLocked()
}

// HealthPings returns how many health pings have been received in total.
func (s *Server) HealthPings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthPings
}

func (s *Server) snapshotLocked() *sdk.GameServer {
	return proto.Clone(s.gs).(*sdk.GameServer)
}

// broadcastLocked delivers the current snapshot to every watcher. Watchers
// that lag more than watchBufferSize updates behind miss the update.
func (s *Server) broadcastLocked() {
	for id, ch := range s.watchers {
		select {
		case ch <- s.snapshotLocked():
		default:
			s.logger.WithFields(log.Fields{
				"watcher": id,
			}).Warn("dropping game server update for slow watcher")
		}
	}
}

// subscribe registers a new watcher whose channel already carries the
// current state as its first element.
func (s *Server) subscribe() (<-chan *sdk.GameServer, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatcherID
	s.nextWatcherID++

	ch := make(chan *sdk.GameServer, watchBufferSize)
	ch <- s.snapshotLocked()
	s.watchers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Server) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gs.Status.State = state
	s.broadcastLocked()
	s.logger.WithFields(log.Fields{
		"state": state,
	}).Info("game server state changed")
}

// stableService implements the stable SDK service on top of Server.
type stableService struct {
	sdk.UnimplementedSDKServer
	s *Server
}

func (svc *stableService) Ready(context.Context, *sdk.Empty) (*sdk.Empty, error) {
	svc.s.setState("Ready")
	return &sdk.Empty{}, nil
}

func (svc *stableService) Allocate(context.Context, *sdk.Empty) (*sdk.Empty, error) {
	svc.s.setState("Allocated")
	return &sdk.Empty{}, nil
}

func (svc *stableService) Shutdown(context.Context, *sdk.Empty) (*sdk.Empty, error) {
	svc.s.setState("Shutdown")
	return &sdk.Empty{}, nil
}

func (svc *stableService) Reserve(_ context.Context, d *sdk.Duration) (*sdk.Empty, error) {
	if d.Seconds < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "reservation seconds must not be negative: %d", d.Seconds)
	}
	svc.s.setState("Reserved")
	return &sdk.Empty{}, nil
}

func (svc *stableService) Health(stream sdk.SDK_HealthServer) error {
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			svc.s.logger.Debug("health stream closed")
			return stream.SendAndClose(&sdk.Empty{})
		}
		if err != nil {
			return err
		}

		svc.s.mu.Lock()
		svc.s.healthPings++
		svc.s.mu.Unlock()
	}
}

func (svc *stableService) SetLabel(_ context.Context, kv *sdk.KeyValue) (*sdk.Empty, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	svc.s.gs.ObjectMeta.Labels[kv.Key] = kv.Value
	svc.s.broadcastLocked()
	return &sdk.Empty{}, nil
}

func (svc *stableService) SetAnnotation(_ context.Context, kv *sdk.KeyValue) (*sdk.Empty, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	svc.s.gs.ObjectMeta.Annotations[kv.Key] = kv.Value
	svc.s.broadcastLocked()
	return &sdk.Empty{}, nil
}

func (svc *stableService) GetGameServer(context.Context, *sdk.Empty) (*sdk.GameServer, error) {
	return svc.s.GameServer(), nil
}

func (svc *stableService) WatchGameServer(_ *sdk.Empty, stream sdk.SDK_WatchGameServerServer) error {
	ch, unsubscribe := svc.s.subscribe()
	defer unsubscribe()

	for {
		select {
		case gs := <-ch:
			if err := stream.Send(gs); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// alphaService implements the experimental player-tracking service.
type alphaService struct {
	alpha.UnimplementedSDKServer
	s *Server
}

func (svc *alphaService) PlayerConnect(_ context.Context, id *alpha.PlayerID) (*alpha.Bool, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	for _, p := range svc.s.players {
		if p == id.PlayerID {
			return &alpha.Bool{Bool: false}, nil
		}
	}
	if int64(len(svc.s.players)) >= svc.s.playerCapacity {
		return nil, status.Error(codes.Unknown, playerCapacityMessage)
	}

	svc.s.players = append(svc.s.players, id.PlayerID)
	svc.s.syncPlayerStatusLocked()
	return &alpha.Bool{Bool: true}, nil
}

func (svc *alphaService) PlayerDisconnect(_ context.Context, id *alpha.PlayerID) (*alpha.Bool, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	for i, p := range svc.s.players {
		if p == id.PlayerID {
			svc.s.players = append(svc.s.players[:i], svc.s.players[i+1:]...)
			svc.s.syncPlayerStatusLocked()
			return &alpha.Bool{Bool: true}, nil
		}
	}
	return &alpha.Bool{Bool: false}, nil
}

func (svc *alphaService) IsPlayerConnected(_ context.Context, id *alpha.PlayerID) (*alpha.Bool, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	for _, p := range svc.s.players {
		if p == id.PlayerID {
			return &alpha.Bool{Bool: true}, nil
		}
	}
	return &alpha.Bool{Bool: false}, nil
}

func (svc *alphaService) GetConnectedPlayers(context.Context, *alpha.Empty) (*alpha.PlayerIDList, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	return &alpha.PlayerIDList{List: append([]string(nil), svc.s.players...)}, nil
}

func (svc *alphaService) GetPlayerCount(context.Context, *alpha.Empty) (*alpha.Count, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	return &alpha.Count{Count: int64(len(svc.s.players))}, nil
}

func (svc *alphaService) GetPlayerCapacity(context.Context, *alpha.Empty) (*alpha.Count, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	return &alpha.Count{Count: svc.s.playerCapacity}, nil
}

func (svc *alphaService) SetPlayerCapacity(_ context.Context, count *alpha.Count) (*alpha.Empty, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	// players beyond a lowered capacity stay registered, the new bound
	// only blocks future additions
	svc.s.playerCapacity = count.Count
	svc.s.syncPlayerStatusLocked()
	return &alpha.Empty{}, nil
}

func (s *Server) syncPlayerStatusLocked() {
	s.gs.Status.Players = &sdk.GameServer_Status_PlayerStatus{
		Count:    int64(len(s.players)),
		Capacity: s.playerCapacity,
		Ids:      append([]string(nil), s.players...),
	}
	s.broadcastLocked()
}

// betaService implements the counter and list service.
type betaService struct {
	beta.UnimplementedSDKServer
	s *Server
}

func (svc *betaService) GetCounter(_ context.Context, req *beta.GetCounterRequest) (*beta.Counter, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	c, ok := svc.s.counters[req.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "counter not found: %s", req.Name)
	}
	return &beta.Counter{Name: req.Name, Count: c.Count, Capacity: c.Capacity}, nil
}

func (svc *betaService) UpdateCounter(_ context.Context, req *beta.UpdateCounterRequest) (*beta.Counter, error) {
	update := req.CounterUpdateRequest
	if update == nil {
		return nil, status.Error(codes.InvalidArgument, "a counter update request is required")
	}

	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	c, ok := svc.s.counters[update.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "counter not found: %s", update.Name)
	}

	if update.Capacity != nil {
		if update.Capacity.Value < 0 {
			return nil, status.Errorf(codes.OutOfRange, "capacity must not be negative: %d", update.Capacity.Value)
		}
		c.Capacity = update.Capacity.Value
	}
	if update.Count != nil {
		if update.Count.Value < 0 || update.Count.Value > c.Capacity {
			return nil, status.Errorf(codes.OutOfRange,
				"count must be within range [0,%d], found: %d", c.Capacity, update.Count.Value)
		}
		c.Count = update.Count.Value
	}
	if update.CountDiff != 0 {
		count := c.Count + update.CountDiff
		if count < 0 || count > c.Capacity {
			return nil, status.Errorf(codes.OutOfRange,
				"count must be within range [0,%d], found: %d", c.Capacity, count)
		}
		c.Count = count
	}

	return &beta.Counter{Name: update.Name, Count: c.Count, Capacity: c.Capacity}, nil
}

func (svc *betaService) GetList(_ context.Context, req *beta.GetListRequest) (*beta.List, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	l, ok := svc.s.lists[req.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "list not found: %s", req.Name)
	}
	return &beta.List{
		Name:     req.Name,
		Capacity: l.Capacity,
		Values:   append([]string(nil), l.Values...),
	}, nil
}

func (svc *betaService) UpdateList(_ context.Context, req *beta.UpdateListRequest) (*beta.List, error) {
	if req.List == nil {
		return nil, status.Error(codes.InvalidArgument, "a list is required")
	}

	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	l, ok := svc.s.lists[req.List.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "list not found: %s", req.List.Name)
	}

	for _, path := range req.UpdateMask.GetPaths() {
		switch path {
		case "capacity":
			if req.List.Capacity < 0 {
				return nil, status.Errorf(codes.OutOfRange, "capacity must not be negative: %d", req.List.Capacity)
			}
			// shrinking the capacity below the current size does not
			// evict values, it only blocks future additions
			l.Capacity = req.List.Capacity
		case "values":
			l.Values = uniqueValues(req.List.Values)
		default:
			return nil, status.Errorf(codes.InvalidArgument, "unknown update mask path: %s", path)
		}
	}

	return &beta.List{
		Name:     req.List.Name,
		Capacity: l.Capacity,
		Values:   append([]string(nil), l.Values...),
	}, nil
}

func (svc *betaService) AddListValue(_ context.Context, req *beta.AddListValueRequest) (*beta.List, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	l, ok := svc.s.lists[req.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "list not found: %s", req.Name)
	}
	for _, v := range l.Values {
		if v == req.Value {
			return nil, status.Errorf(codes.AlreadyExists, "value already in list: %s", req.Value)
		}
	}
	if int64(len(l.Values)) >= l.Capacity {
		return nil, status.Errorf(codes.OutOfRange, "list is already at capacity: %d", l.Capacity)
	}

	l.Values = append(l.Values, req.Value)
	return &beta.List{
		Name:     req.Name,
		Capacity: l.Capacity,
		Values:   append([]string(nil), l.Values...),
	}, nil
}

func (svc *betaService) RemoveListValue(_ context.Context, req *beta.RemoveListValueRequest) (*beta.List, error) {
	svc.s.mu.Lock()
	defer svc.s.mu.Unlock()

	l, ok := svc.s.lists[req.Name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "list not found: %s", req.Name)
	}
	for i, v := range l.Values {
		if v == req.Value {
			l.Values = append(l.Values[:i], l.Values[i+1:]...)
			return &beta.List{
				Name:     req.Name,
				Capacity: l.Capacity,
				Values:   append([]string(nil), l.Values...),
			}, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "value not found in list: %s", req.Value)
}

func uniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}
