// Package realtime keeps track of which observers sit in which rooms and
// fans vote events out to them.
package realtime

import (
	"errors"
	"strings"
	"sync"

	"github.com/lvdashuaibi/votely/internal/model"
)

const (
	AdminRoom          = "admin-room"
	electionRoomPrefix = "election-"
)

var ErrJoinDenied = errors.New("not allowed to join this room")

func ElectionRoom(electionID string) string {
	return electionRoomPrefix + electionID
}

// Subscriber 一个已连接的观察者。Send 不阻塞，缓冲区满时返回 false
type Subscriber interface {
	ID() string
	Send(frame []byte) bool
	Close()
}

// JoinPolicy 决定某个身份能否加入房间，user 为 nil 表示匿名连接
type JoinPolicy interface {
	CanJoin(user *model.User, room string) bool
}

// RolePolicy 选举房间对所有连接开放，管理员房间只允许激活状态的管理员
type RolePolicy struct{}

func (RolePolicy) CanJoin(user *model.User, room string) bool {
	if room == AdminRoom {
		return user.IsAdmin() && user.Status == model.UserActive
	}
	return strings.HasPrefix(room, electionRoomPrefix) && len(room) > len(electionRoomPrefix)
}

// Registry 房间到订阅者的映射，同时记录每个订阅者所在的房间以便断开时清理
type Registry struct {
	sync.RWMutex
	policy      JoinPolicy
	rooms       map[string]map[string]Subscriber
	memberships map[string]map[string]struct{}
}

func NewRegistry(policy JoinPolicy) *Registry {
	if policy == nil {
		policy = RolePolicy{}
	}
	return &Registry{
		policy:      policy,
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join 加入房间，重复加入无副作用
func (r *Registry) Join(sub Subscriber, user *model.User, room string) error {
	if !r.policy.CanJoin(user, room) {
		return ErrJoinDenied
	}

	r.Lock()
	defer r.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		r.rooms[room] = members
	}
	members[sub.ID()] = sub

	joined, ok := r.memberships[sub.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[sub.ID()] = joined
	}
	joined[room] = struct{}{}
	return nil
}

// Leave 离开房间，不在房间内时无副作用
func (r *Registry) Leave(subID, room string) {
	r.Lock()
	defer r.Unlock()
	r.leave(subID, room)
}

func (r *Registry) leave(subID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, subID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.memberships[subID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.memberships, subID)
		}
	}
}

// RemoveAll 连接断开时从所有房间移除
func (r *Registry) RemoveAll(subID string) {
	r.Lock()
	defer r.Unlock()

	for room := range r.memberships[subID] {
		r.leave(subID, room)
	}
}

// Members 返回房间成员快照
func (r *Registry) Members(room string) []Subscriber {
	r.RLock()
	defer r.RUnlock()

	members := make([]Subscriber, 0, len(r.rooms[room]))
	for _, sub := range r.rooms[room] {
		members = append(members, sub)
	}
	return members
}

func (r *Registry) Rooms(subID string) []string {
	r.RLock()
	defer r.RUnlock()

	rooms := make([]string, 0, len(r.memberships[subID]))
	for room := range r.memberships[subID] {
		rooms = append(rooms, room)
	}
	return rooms
}
