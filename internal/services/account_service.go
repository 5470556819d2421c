package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeet1511/FF-LIKE/internal/models"
	"gorm.io/gorm"
)

// AccountService is the credential store: the durable pool of game accounts.
type AccountService struct {
	db *gorm.DB
	// serializes slot assignment per server
	slots *keyedMutex
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db, slots: newKeyedMutex()}
}

func (s *AccountService) Create(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	uid := strings.TrimSpace(req.UID)
	if !isNumericUID(uid) {
		return nil, validationErrorf("uid must be numeric")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, validationErrorf("password is required")
	}
	server, ok := models.NormalizeServer(req.Server)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServer, req.Server)
	}

	unlock := s.slots.Lock("server|" + server)
	defer unlock()

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("uid = ? AND server = ?", uid, server).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateAccount
	}

	slot := req.AccountID
	if slot <= 0 {
		next, err := s.nextSlot(ctx, server)
		if err != nil {
			return nil, err
		}
		slot = next
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = server + "-" + strconv.Itoa(slot)
	}

	account := &models.Account{
		UID:      uid,
		Password: req.Password,
		Server:   server,
		Name:     name,
		Slot:     slot,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) nextSlot(ctx context.Context, server string) (int, error) {
	var maxSlot sql.NullInt64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("server = ?", server).
		Select("MAX(account_id)").Row().Scan(&maxSlot)
	if err != nil {
		return 0, err
	}
	if !maxSlot.Valid {
		return 1, nil
	}
	return int(maxSlot.Int64) + 1, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Update changes name, password or slot. It reports whether the password changed
// so the caller can retire the token issued with the old one.
func (s *AccountService) Update(ctx context.Context, id uint, req models.UpdateAccountRequest) (*models.Account, bool, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	updates := map[string]interface{}{}
	passwordChanged := false
	if name := strings.TrimSpace(req.Name); name != "" && name != account.Name {
		updates["name"] = name
	}
	if req.Password != "" && req.Password != account.Password {
		updates["password"] = req.Password
		passwordChanged = true
	}
	if req.AccountID > 0 && req.AccountID != account.Slot {
		updates["account_id"] = req.AccountID
	}
	if len(updates) == 0 {
		return account, false, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	account, err = s.GetByID(ctx, id)
	return account, passwordChanged, err
}

func (s *AccountService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Account{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// List returns accounts ordered by server then slot. An empty server lists all.
func (s *AccountService) List(ctx context.Context, server string) ([]models.Account, error) {
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if strings.TrimSpace(server) != "" {
		code, ok := models.NormalizeServer(server)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidServer, server)
		}
		query = query.Where("server = ?", code)
	}

	accounts := make([]models.Account, 0)
	if err := query.Order("server asc, account_id asc, id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *AccountService) CountByServer(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Server string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("server, COUNT(*) as count").Group("server").Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Server] = r.Count
	}
	return counts, nil
}

func isNumericUID(uid string) bool {
	if uid == "" || len(uid) > 20 {
		return false
	}
	for _, r := range uid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
