package models

import (
	"time"
)

type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name      string `gorm:"size:255;not null"             json:"name"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string `gorm:"size:255;not null"             json:"-"`
	Confirmed bool   `gorm:"default:false"                 json:"confirmed"`
	Role      string `gorm:"size:255;default:user"         json:"role"`
}

type Technique struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string  `gorm:"size:50;not null"         json:"title"`
	Description string  `gorm:"size:1000;not null"       json:"description"`
	VideoURL    *string `gorm:"size:200"                 json:"videoUrl"`
}

type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID  uint      `gorm:"index;not null"           json:"sender_id"`
	Message   string    `gorm:"type:text;not null"       json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
