package roster

import (
	"fmt"
	"strings"
)

// Role は操作者の権限ロールです。
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleEngineer   Role = "engineer"
	RoleViewer     Role = "viewer"
)

// ParseRole は文字列を Role に変換します。
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleSupervisor, RoleEngineer, RoleViewer:
		return role, nil
	default:
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidRole)
	}
}

// Account はスナップショットに保存されるログインアカウントです。
// engineer ロールは作成時に WorkerID で作業員レコードへ明示的に紐づけます。
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	WorkerID string `json:"workerId,omitempty"`
}

// Actor は認証済みの操作者とその権限範囲です。
type Actor struct {
	UserID   string
	Role     Role
	WorkerID string
}

// ResolveActor はアカウント ID から Actor を解決します。
func ResolveActor(s *Snapshot, userID string) (Actor, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return Actor{}, fmt.Errorf("user id: %w", ErrInvalidID)
	}
	for _, acc := range s.Users {
		if acc.ID != id {
			continue
		}
		role, err := ParseRole(string(acc.Role))
		if err != nil {
			return Actor{}, err
		}
		actor := Actor{UserID: acc.ID, Role: role}
		if role == RoleEngineer {
			actor.WorkerID = acc.WorkerID
		}
		return actor, nil
	}
	return Actor{}, ErrAccountNotFound
}

// owns は engineer が現場の責任者であるかを判定します。
func (a Actor) owns(site *Site) bool {
	return site != nil && a.WorkerID != "" && site.EngineerID == a.WorkerID
}

func (a Actor) canMutate() error {
	switch a.Role {
	case RoleAdmin, RoleSupervisor, RoleEngineer:
		return nil
	default:
		return fmt.Errorf("role %q: %w", a.Role, ErrForbidden)
	}
}

// authorizeMove は作業員を現在のコンテナから target (空文字はプール) へ移す権限を検証します。
// engineer は移動元・移動先のうち現場であるものがすべて自分の担当現場である場合のみ許可されます。
func authorizeMove(s *Snapshot, actor Actor, w *Worker, targetSiteID string) error {
	if err := actor.canMutate(); err != nil {
		return err
	}
	if actor.Role != RoleEngineer {
		return nil
	}
	if targetSiteID != "" && !actor.owns(s.Site(targetSiteID)) {
		return fmt.Errorf("engineer %s does not own site %s: %w", actor.WorkerID, targetSiteID, ErrForbidden)
	}
	if w.IsAssigned() && !actor.owns(s.Site(w.AssignedSiteID)) {
		return fmt.Errorf("engineer %s does not own site %s: %w", actor.WorkerID, w.AssignedSiteID, ErrForbidden)
	}
	return nil
}

// authorizeReorder は現場名簿の並べ替え権限を検証します。
func authorizeReorder(actor Actor, site *Site) error {
	if err := actor.canMutate(); err != nil {
		return err
	}
	if actor.Role == RoleEngineer && !actor.owns(site) {
		return fmt.Errorf("engineer %s does not own site %s: %w", actor.WorkerID, site.ID, ErrForbidden)
	}
	return nil
}

// authorizeWorkerChange は稼働状態・欠勤・休暇の記録権限を検証します。
// engineer はプールの作業員か自分の担当現場の作業員のみ操作できます。
func authorizeWorkerChange(s *Snapshot, actor Actor, w *Worker) error {
	if err := actor.canMutate(); err != nil {
		return err
	}
	if actor.Role == RoleEngineer && w.IsAssigned() && !actor.owns(s.Site(w.AssignedSiteID)) {
		return fmt.Errorf("engineer %s does not own site %s: %w", actor.WorkerID, w.AssignedSiteID, ErrForbidden)
	}
	return nil
}

// authorizeReplace はスナップショット全体の置き換え (インポート) 権限を検証します。
func authorizeReplace(actor Actor) error {
	if actor.Role != RoleAdmin {
		return fmt.Errorf("role %q cannot import snapshots: %w", actor.Role, ErrForbidden)
	}
	return nil
}
