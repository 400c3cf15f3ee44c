// Package model はドメインモデルを定義する。
package model

import "time"

// Issue は配信するニュースレター号を表す。
// HTMLコンテンツは保存前にサニタイズ済みであることを前提とする。
type Issue struct {
	ID          string
	Subject     string
	HTMLContent string
	TextContent string
	CreatedAt   time.Time
}

// Delivery はニュースレター号の購読者ごとの配信キューエントリを表す。
// 号の発行時にconfirmed購読者1人につき1行enqueueされ、
// ディスパッチワーカーがpending行を取得してメール送信を行う。
type Delivery struct {
	ID            string
	IssueID       string
	SubscriberID  string
	Email         string
	Status        DeliveryStatus
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryStatus は配信キューエントリの状態を表す。
type DeliveryStatus string

const (
	// DeliveryStatusPending は配信待ちの状態。
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusSent は配信成功の状態。
	DeliveryStatusSent DeliveryStatus = "sent"
	// DeliveryStatusFailed はリトライ上限超過による配信失敗の状態。
	DeliveryStatusFailed DeliveryStatus = "failed"
)
