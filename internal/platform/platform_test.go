package platform

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func TestMemberStatusClasses(t *testing.T) {
	for _, s := range []MemberStatus{StatusCreator, StatusAdministrator, StatusMember, StatusRestricted} {
		assert.True(t, s.InGroup(), s)
	}
	for _, s := range []MemberStatus{StatusLeft, StatusKicked, StatusUnknown} {
		assert.False(t, s.InGroup(), s)
	}
	assert.True(t, StatusCreator.Privileged())
	assert.False(t, StatusMember.Privileged())
}

func TestToChatPermissionsMuted(t *testing.T) {
	p := toChatPermissions(Muted)
	if assert.NotNil(t, p.CanSendMessages) {
		assert.False(t, *p.CanSendMessages)
	}
	p = toChatPermissions(Permissions{SendMessages: true})
	assert.True(t, *p.CanSendMessages)
	assert.False(t, *p.CanSendPhotos)
}

func TestStatusFromTelego(t *testing.T) {
	assert.Equal(t, StatusCreator, StatusFromTelego(&telego.ChatMemberOwner{Status: telego.MemberStatusCreator}))
	assert.Equal(t, StatusMember, StatusFromTelego(&telego.ChatMemberMember{Status: telego.MemberStatusMember}))
	assert.Equal(t, StatusRestricted, StatusFromTelego(&telego.ChatMemberRestricted{Status: telego.MemberStatusRestricted, IsMember: true}))
	assert.Equal(t, StatusLeft, StatusFromTelego(&telego.ChatMemberRestricted{Status: telego.MemberStatusRestricted, IsMember: false}))
	assert.Equal(t, StatusKicked, StatusFromTelego(&telego.ChatMemberBanned{Status: telego.MemberStatusBanned}))
}
