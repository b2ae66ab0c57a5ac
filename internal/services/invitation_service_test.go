package services

import (
	"sync"
	"testing"
	"time"

	"notesaas/internal/models"
	"notesaas/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 建一个公司和管理员，返回(db, svc, tenant, admin)
func setupInvitationTest(t *testing.T) (*gorm.DB, *InvitationService, *models.Tenant, *models.Profile) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewInvitationService(db)
	_, founder := createTestAccount(t, db, "boss@acme.com", "Boss", models.RoleCompanyMember, models.SubscriptionStandard)
	tenant := createTestTenant(t, db, "Acme Corp", founder)
	return db, svc, tenant, founder
}

func TestInvitationCreateAndAccept(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "newhire@example.com", "NewHire", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email:   "newhire@example.com",
		Role:    models.RoleCompanyMember,
		Message: "欢迎加入",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, invitation.Status)
	assert.NotEmpty(t, invitation.Token)
	require.NotNil(t, invitation.InviteeID)
	assert.Equal(t, invitee.ID, *invitation.InviteeID)

	joined, err := svc.Accept(invitation.Token, invitee)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, joined.ID)

	// 档案被绑定并授予邀请中的角色
	invitee = reloadProfile(t, db, invitee.ID)
	require.NotNil(t, invitee.TenantID)
	assert.Equal(t, tenant.ID, *invitee.TenantID)
	assert.Equal(t, models.RoleCompanyMember, invitee.Role)

	// 邀请落为accepted
	var stored models.Invitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationStatusAccepted, stored.Status)
	assert.NotNil(t, stored.AcceptedAt)
}

func TestInvitationCreateRequiresAdmin(t *testing.T) {
	db, svc, tenant, _ := setupInvitationTest(t)
	_, member := createTestAccount(t, db, "peon@acme.com", "Peon", models.RoleCompanyMember, models.SubscriptionStandard)
	require.NoError(t, db.Model(member).Update("tenant_id", tenant.ID).Error)
	member = reloadProfile(t, db, member.ID)

	_, err := svc.Create(member, tenant.ID, &CreateInvitationRequest{
		Email: "someone@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)
}

func TestInvitationCreateInvalidRole(t *testing.T) {
	_, svc, tenant, admin := setupInvitationTest(t)

	_, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "someone@example.com",
		Role:  models.RoleIndependentUser,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidParam, appErr.Code)
}

func TestInvitationDuplicatePending(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "dup@example.com", "Dup", models.RoleCompanyMember, models.SubscriptionStandard)

	first, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "dup@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	// 同邮箱已有待处理邀请
	_, err = svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "dup@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)

	// 拒绝后可以再次邀请
	require.NoError(t, svc.Decline(first.Token, invitee))
	_, err = svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "dup@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)
}

func TestInvitationAcceptEmailMismatch(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, stranger := createTestAccount(t, db, "stranger@example.com", "Stranger", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "intended@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	// 持有令牌不等于持有身份
	_, err = svc.Accept(invitation.Token, stranger)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)

	// 邀请仍然待处理
	stored, err := svc.GetByToken(invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, stored.EffectiveStatus())
}

// 过期按时间判定，不依赖清理任务是否已改写存储状态
func TestInvitationExpiredByTime(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "late@example.com", "Late", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "late@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	// 把有效期改到过去，存储状态仍是pending
	expired := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Invitation{}).Where("id = ?", invitation.ID).
		Update("expires_at", expired).Error)

	_, err = svc.Accept(invitation.Token, invitee)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)

	// 受邀人视角看到的是expired
	responses, err := svc.ListByEmail("late@example.com", "")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, models.InvitationStatusExpired, responses[0].Status)

	// 档案未被绑定
	invitee = reloadProfile(t, db, invitee.ID)
	assert.Nil(t, invitee.TenantID)
}

// 同一邀请的并发接受只有一个能成功
func TestInvitationConcurrentAccept(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "race@example.com", "Race", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "race@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := *invitee
			_, err := svc.Accept(invitation.Token, &actor)
			results <- err
		}()
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

	// 档案只被绑定一次
	invitee = reloadProfile(t, db, invitee.ID)
	require.NotNil(t, invitee.TenantID)
	assert.Equal(t, tenant.ID, *invitee.TenantID)
}

func TestInvitationAcceptAlreadyInCompany(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	_, otherFounder := createTestAccount(t, db, "other@corp.com", "Other", models.RoleCompanyMember, models.SubscriptionStandard)
	createTestTenant(t, db, "Other Corp", otherFounder)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "other@corp.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	_, err = svc.Accept(invitation.Token, otherFounder)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestInvitationDecline(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "nope@example.com", "Nope", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "nope@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Decline(invitation.Token, invitee))

	// 拒绝不改变档案归属
	invitee = reloadProfile(t, db, invitee.ID)
	assert.Nil(t, invitee.TenantID)

	// 已处理的邀请不能再接受
	_, err = svc.Accept(invitation.Token, invitee)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestInvitationCancel(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "cancelme@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	// 无关用户不能取消
	_, outsider := createTestAccount(t, db, "outsider@example.com", "Outsider", models.RoleIndependentUser, models.SubscriptionStandard)
	err = svc.Cancel(invitation.ID, outsider, tenant.ID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)

	// 邀请人可以取消
	require.NoError(t, svc.Cancel(invitation.ID, admin, tenant.ID))

	var stored models.Invitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationStatusExpired, stored.Status)

	// 重复取消报冲突
	err = svc.Cancel(invitation.ID, admin, tenant.ID)
	require.Error(t, err)
	appErr, ok = err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestInvitationCapacityLimit(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	// 名额降到当前成员数，新的邀请被拒绝
	require.NoError(t, db.Model(&models.Tenant{}).Where("id = ?", tenant.ID).
		Update("max_users", 1).Error)

	_, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "overflow@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)
}

func TestInvitationSweepExpired(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "sweep@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Invitation{}).Where("id = ?", invitation.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	swept, err := svc.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	var stored models.Invitation
	require.NoError(t, db.First(&stored, invitation.ID).Error)
	assert.Equal(t, models.InvitationStatusExpired, stored.Status)

	// 清理是幂等的
	swept, err = svc.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(0), swept)
}

func TestInvitationListByTenant(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	_, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "one@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)
	_, err = svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "two@example.com",
		Role:  models.RoleCompanyAdmin,
	})
	require.NoError(t, err)

	responses, err := svc.ListByTenant(admin, tenant.ID, "")
	require.NoError(t, err)
	assert.Len(t, responses, 2)
	for _, resp := range responses {
		assert.Equal(t, "Acme Corp", resp.CompanyName)
		assert.NotEmpty(t, resp.Token)
	}

	// 非管理员不可见
	_, member := createTestAccount(t, db, "viewer@example.com", "Viewer", models.RoleIndependentUser, models.SubscriptionStandard)
	_, err = svc.ListByTenant(member, tenant.ID, "")
	require.Error(t, err)
}

// 受邀邮箱与注册邮箱同规则归一化：存为小写，受邀人本人能接受
func TestInvitationEmailCaseNormalized(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, invitee := createTestAccount(t, db, "alice@example.com", "Alice", models.RoleCompanyMember, models.SubscriptionStandard)

	invitation, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: " Alice@Example.com ",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", invitation.InviteeEmail)
	require.NotNil(t, invitation.InviteeID)
	assert.Equal(t, invitee.ID, *invitation.InviteeID)

	// 大小写不同的同一邮箱算重复邀请
	_, err = svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "ALICE@EXAMPLE.COM",
		Role:  models.RoleCompanyMember,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeConflict, appErr.Code)

	// 受邀人本人接受成功
	_, err = svc.Accept(invitation.Token, invitee)
	require.NoError(t, err)
	invitee = reloadProfile(t, db, invitee.ID)
	require.NotNil(t, invitee.TenantID)
	assert.Equal(t, tenant.ID, *invitee.TenantID)
}

// 并发创建同邮箱邀请只允许一条待处理记录落库
func TestInvitationConcurrentCreateDuplicate(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)

	const workers = 4
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := *admin
			_, err := svc.Create(&actor, tenant.ID, &CreateInvitationRequest{
				Email: "race-invite@example.com",
				Role:  models.RoleCompanyMember,
			})
			results <- err
		}()
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

	var pendingCount int64
	require.NoError(t, db.Model(&models.Invitation{}).
		Where("tenant_id = ? AND invitee_email = ? AND status = ?",
			tenant.ID, "race-invite@example.com", models.InvitationStatusPending).
		Count(&pendingCount).Error)
	assert.Equal(t, int64(1), pendingCount)
}

func TestInvitationListCandidates(t *testing.T) {
	db, svc, tenant, admin := setupInvitationTest(t)
	_, free := createTestAccount(t, db, "free@example.com", "Free", models.RoleCompanyMember, models.SubscriptionStandard)
	createTestAccount(t, db, "indie@example.com", "Indie", models.RoleIndependentUser, models.SubscriptionPremium)
	_, bound := createTestAccount(t, db, "bound@acme.com", "Bound", models.RoleCompanyMember, models.SubscriptionStandard)
	require.NoError(t, db.Model(bound).Update("tenant_id", tenant.ID).Error)

	// 拒绝后再次邀请，目录里显示最近一次邀请的状态
	first, err := svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "free@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Decline(first.Token, free))
	_, err = svc.Create(admin, tenant.ID, &CreateInvitationRequest{
		Email: "free@example.com",
		Role:  models.RoleCompanyMember,
	})
	require.NoError(t, err)

	candidates, err := svc.ListCandidates(admin, tenant.ID)
	require.NoError(t, err)

	byEmail := make(map[string]*CandidateResponse, len(candidates))
	for _, cand := range candidates {
		byEmail[cand.Email] = cand
	}
	require.Contains(t, byEmail, "free@example.com")
	require.Contains(t, byEmail, "indie@example.com")
	assert.NotContains(t, byEmail, "bound@acme.com")
	assert.NotContains(t, byEmail, "boss@acme.com")

	assert.Equal(t, models.InvitationStatusPending, byEmail["free@example.com"].InvitationStatus)
	assert.Empty(t, byEmail["indie@example.com"].InvitationStatus)
	assert.Equal(t, models.SubscriptionPremium, byEmail["indie@example.com"].SubscriptionType)

	// 非管理员不可见
	_, err = svc.ListCandidates(free, tenant.ID)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeForbidden, appErr.Code)
}
