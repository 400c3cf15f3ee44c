package email

import "fmt"

// NewConfirmationMessage は購読確認メールを構築する。
// confirmURLはトークン付きの確認リンク。
func NewConfirmationMessage(to, name, confirmURL string) *Message {
	return &Message{
		To:      to,
		Subject: "ニュースレター購読の確認",
		HTMLBody: fmt.Sprintf(
			"<p>%s様</p>"+
				"<p>ニュースレターへのご登録ありがとうございます。<br>"+
				"以下のリンクをクリックして購読を確認してください。</p>"+
				`<p><a href="%s">購読を確認する</a></p>`+
				"<p>このメールに心当たりがない場合は破棄してください。</p>",
			name, confirmURL,
		),
		TextBody: fmt.Sprintf(
			"%s様\n\n"+
				"ニュースレターへのご登録ありがとうございます。\n"+
				"以下のリンクを開いて購読を確認してください。\n\n"+
				"%s\n\n"+
				"このメールに心当たりがない場合は破棄してください。\n",
			name, confirmURL,
		),
	}
}
