package services

import (
	"fmt"
	"sync"
	"testing"

	"notesaas/internal/models"
	"notesaas/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteCreateStandardQuota(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "alice@example.com", "Alice", models.RoleIndependentUser, models.SubscriptionStandard)

	for i := 0; i < svc.StandardLimit(); i++ {
		_, err := svc.Create(profile, &CreateNoteRequest{Title: fmt.Sprintf("笔记%d", i)})
		require.NoError(t, err)
	}

	// 超出上限的创建被拒绝
	_, err := svc.Create(profile, &CreateNoteRequest{Title: "超出上限"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)

	count, err := svc.CountLive(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(svc.StandardLimit()), count)
}

func TestNoteCreatePremiumUnlimited(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "bob@example.com", "Bob", models.RoleIndependentUser, models.SubscriptionPremium)

	for i := 0; i < svc.StandardLimit()+5; i++ {
		_, err := svc.Create(profile, &CreateNoteRequest{Title: fmt.Sprintf("笔记%d", i)})
		require.NoError(t, err)
	}

	ok, err := svc.CanCreate(profile)
	require.NoError(t, err)
	assert.True(t, ok)
}

// 并发创建只放行配额内的数量：2条已有，10个并发请求只能成功1个
func TestNoteCreateConcurrentQuota(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "carol@example.com", "Carol", models.RoleIndependentUser, models.SubscriptionStandard)

	for i := 0; i < svc.StandardLimit()-1; i++ {
		_, err := svc.Create(profile, &CreateNoteRequest{Title: fmt.Sprintf("已有%d", i)})
		require.NoError(t, err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Create(profile, &CreateNoteRequest{Title: fmt.Sprintf("并发%d", n)})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		appErr, ok := err.(*errors.AppError)
		require.True(t, ok, "unexpected error: %v", err)
		assert.Equal(t, errors.CodeConflict, appErr.Code)
		conflicted++
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicted)

	count, err := svc.CountLive(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(svc.StandardLimit()), count)
}

func TestNoteCreateEmptyTitle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "dave@example.com", "Dave", models.RoleIndependentUser, models.SubscriptionStandard)

	_, err := svc.Create(profile, &CreateNoteRequest{Title: "   "})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidParam, appErr.Code)
}

func TestNoteSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "erin@example.com", "Erin", models.RoleIndependentUser, models.SubscriptionStandard)

	note, err := svc.Create(profile, &CreateNoteRequest{Title: "待删除"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(profile, note.ID))

	// 列表和计数不再包含
	notes, total, err := svc.List(profile.ID, "", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Equal(t, int64(0), total)

	count, err := svc.CountLive(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// 按ID仍可取到，行保留
	got, err := svc.GetByID(profile, note.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// 重复删除报不存在
	err = svc.SoftDelete(profile, note.ID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)

	// 已删除的笔记不可更新
	newTitle := "改标题"
	_, err = svc.Update(profile, note.ID, &UpdateNoteRequest{Title: &newTitle})
	require.Error(t, err)
}

// 软删除释放配额：删一条后可以再建
func TestNoteSoftDeleteFreesQuota(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "frank@example.com", "Frank", models.RoleIndependentUser, models.SubscriptionStandard)

	var first *models.Note
	for i := 0; i < svc.StandardLimit(); i++ {
		note, err := svc.Create(profile, &CreateNoteRequest{Title: fmt.Sprintf("笔记%d", i)})
		require.NoError(t, err)
		if first == nil {
			first = note
		}
	}

	_, err := svc.Create(profile, &CreateNoteRequest{Title: "满了"})
	require.Error(t, err)

	require.NoError(t, svc.SoftDelete(profile, first.ID))

	_, err = svc.Create(profile, &CreateNoteRequest{Title: "腾出位置以后"})
	require.NoError(t, err)
}

func TestNoteUpdateOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, owner := createTestAccount(t, db, "grace@example.com", "Grace", models.RoleIndependentUser, models.SubscriptionStandard)
	_, other := createTestAccount(t, db, "henry@example.com", "Henry", models.RoleIndependentUser, models.SubscriptionStandard)

	note, err := svc.Create(owner, &CreateNoteRequest{Title: "私有笔记", Content: "原始内容"})
	require.NoError(t, err)

	newContent := "篡改"
	_, err = svc.Update(other, note.ID, &UpdateNoteRequest{Content: &newContent})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code)

	favorite := true
	updated, err := svc.Update(owner, note.ID, &UpdateNoteRequest{IsFavorite: &favorite})
	require.NoError(t, err)
	assert.Equal(t, note.ID, updated.ID)
}

func TestNoteAdminVisibility(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)

	_, founder := createTestAccount(t, db, "admin@acme.com", "Admin", models.RoleCompanyMember, models.SubscriptionStandard)
	tenant := createTestTenant(t, db, "Acme Corp", founder)

	_, member := createTestAccount(t, db, "member@acme.com", "Member", models.RoleCompanyMember, models.SubscriptionStandard)
	require.NoError(t, db.Model(member).Updates(map[string]interface{}{"tenant_id": tenant.ID}).Error)
	member = reloadProfile(t, db, member.ID)

	note, err := svc.Create(member, &CreateNoteRequest{Title: "成员的笔记"})
	require.NoError(t, err)

	// 本公司管理员可见
	got, err := svc.GetByID(founder, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)

	notes, total, err := svc.ListByOwnerForAdmin(founder, member.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, notes, 1)

	// 其他公司的管理员不可见
	_, outsider := createTestAccount(t, db, "admin@other.com", "Outsider", models.RoleCompanyMember, models.SubscriptionStandard)
	createTestTenant(t, db, "Other Corp", outsider)

	_, err = svc.GetByID(outsider, note.ID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)

	_, _, err = svc.ListByOwnerForAdmin(outsider, member.ID, 1, 10)
	require.Error(t, err)
}

func TestNoteListKeyword(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	_, profile := createTestAccount(t, db, "ivy@example.com", "Ivy", models.RoleIndependentUser, models.SubscriptionPremium)

	for _, title := range []string{"会议记录", "购物清单", "会议纪要"} {
		_, err := svc.Create(profile, &CreateNoteRequest{Title: title})
		require.NoError(t, err)
	}

	notes, total, err := svc.List(profile.ID, "会议", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, notes, 2)
}
