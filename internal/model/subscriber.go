// Package model はドメインモデルを定義する。
package model

import "time"

// Subscriber はニュースレターの購読者を表す。
// サインアップ時にpending状態で作成され、確認トークンの検証により
// confirmed状態に遷移する。行は物理削除されず、購読解除は
// unsubscribed状態への遷移として記録される。
type Subscriber struct {
	ID           string
	Email        string
	Name         string
	Status       SubscriberStatus
	SubscribedAt time.Time
}

// SubscriberStatus は購読者の状態を表す。
type SubscriberStatus string

const (
	// StatusPending は確認待ちの状態。
	StatusPending SubscriberStatus = "pending"
	// StatusConfirmed は確認済みの状態。
	StatusConfirmed SubscriberStatus = "confirmed"
	// StatusUnsubscribed は購読解除された状態。
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// SubscriptionToken は購読確認用のワンタイムトークンを表す。
// トークン値自体が主キーであり、1つの購読者に対して同時に有効な
// トークンは最大1つ。確認トランザクション内で消費（削除）される。
type SubscriptionToken struct {
	Token        string
	SubscriberID string
	IssuedAt     time.Time
}
