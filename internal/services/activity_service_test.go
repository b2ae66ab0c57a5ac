package services

import (
	"testing"

	"notesaas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRecordAndScope(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db, nil)

	_, admin := createTestAccount(t, db, "lead@corp.com", "Lead", models.RoleCompanyMember, models.SubscriptionStandard)
	tenant := createTestTenant(t, db, "Log Corp", admin)

	_, member := createTestAccount(t, db, "staff@corp.com", "Staff", models.RoleCompanyMember, models.SubscriptionStandard)
	require.NoError(t, db.Model(member).Update("tenant_id", tenant.ID).Error)
	member = reloadProfile(t, db, member.ID)

	_, indie := createTestAccount(t, db, "alone@example.com", "Alone", models.RoleIndependentUser, models.SubscriptionStandard)

	svc.Record(admin.ID, admin.TenantID, models.ActionTenantCreated, "tenant", "1", "创建公司")
	svc.Record(member.ID, member.TenantID, models.ActionNoteCreated, "note", "1", "创建笔记")
	svc.Record(indie.ID, nil, models.ActionNoteCreated, "note", "2", "独立用户的笔记")

	// 管理员看到本公司全部记录
	entries, total, err := svc.ListForProfile(admin, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)

	// 普通成员只看自己的
	entries, total, err = svc.ListForProfile(member, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, member.ID, entries[0].ActorID)

	// 独立用户只看自己的
	entries, total, err = svc.ListForProfile(indie, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionNoteCreated, entries[0].Action)
}

// 日志写入失败不影响主流程
func TestActivityRecordNeverPanics(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db, nil)

	// 不存在的资源类型和空描述都能落库
	svc.Record(1, nil, "custom_action", "", "", "")

	var count int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	entries, _, err := svc.ListForProfile(&models.Profile{
		BaseModel: models.BaseModel{ID: 1},
		Active:    true,
	}, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ResourceType)
	assert.Nil(t, entries[0].ResourceID)
}
