package models

import (
	"fmt"
	"html"
	"sync"
	"time"
)

// GroupInfo is a registered group and its enforcement toggles.
type GroupInfo struct {
	ID                      uint   `gorm:"primaryKey;autoIncrement"`
	GroupID                 int64  `gorm:"uniqueIndex;not null"`
	GroupName               string `gorm:"size:255"`
	ContentFilterEnabled    bool   `gorm:"default:false"`
	CommandDeletionEnabled  bool   `gorm:"default:false"`
	UnauthorizedMuteEnabled bool   `gorm:"default:false"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// DisplayName falls back to the numeric id for groups registered without a name.
func (g *GroupInfo) DisplayName() string {
	if g.GroupName == "" {
		return fmt.Sprintf("%d", g.GroupID)
	}
	return g.GroupName
}

func (g *GroupInfo) GetEscapedGroupName() string {
	return html.EscapeString(g.DisplayName())
}

// GroupInfoManager caches GroupInfo rows by group id.
type GroupInfoManager struct {
	GroupInfoMap   map[int64]*GroupInfo
	GroupInfoMapMu sync.RWMutex
}

func NewGroupInfoManager() *GroupInfoManager {
	return &GroupInfoManager{
		GroupInfoMap: make(map[int64]*GroupInfo),
	}
}

// GetGroupInfo returns a copy so callers never race with toggles.
func (g *GroupInfoManager) GetGroupInfo(chatID int64) (GroupInfo, bool) {
	g.GroupInfoMapMu.RLock()
	defer g.GroupInfoMapMu.RUnlock()
	info, ok := g.GroupInfoMap[chatID]
	if !ok {
		return GroupInfo{}, false
	}
	return *info, true
}

func (g *GroupInfoManager) AddGroupInfo(groupInfo *GroupInfo) {
	g.GroupInfoMapMu.Lock()
	defer g.GroupInfoMapMu.Unlock()
	cp := *groupInfo
	g.GroupInfoMap[groupInfo.GroupID] = &cp
}

func (g *GroupInfoManager) RemoveGroupInfo(groupID int64) {
	g.GroupInfoMapMu.Lock()
	defer g.GroupInfoMapMu.Unlock()
	delete(g.GroupInfoMap, groupID)
}

func (g *GroupInfoManager) GroupIDs() []int64 {
	g.GroupInfoMapMu.RLock()
	defer g.GroupInfoMapMu.RUnlock()
	ids := make([]int64, 0, len(g.GroupInfoMap))
	for id := range g.GroupInfoMap {
		ids = append(ids, id)
	}
	return ids
}
