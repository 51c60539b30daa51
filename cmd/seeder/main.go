package main

import (
	"log"

	"github.com/mir-codes/PhoSocial/internal/config"
	"github.com/mir-codes/PhoSocial/internal/database"
	"github.com/mir-codes/PhoSocial/internal/models"
	"github.com/mir-codes/PhoSocial/internal/services"
)

// Seeds a handful of demo users and one conversation so the messaging API is
// usable on a fresh local database. User rows belong to the identity service
// in production; this exists for development only.
func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("Running migrations (just in case)...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	users := []models.User{
		{Username: "alice", Name: "Alice Nguyen", Image: "/avatars/alice.png"},
		{Username: "bob", Name: "Bob Martins", Image: "/avatars/bob.png"},
		{Username: "carol", Name: "Carol Diaz", Image: "/avatars/carol.png"},
	}

	for i := range users {
		var existing models.User
		err := database.DB.Where("username = ?", users[i].Username).First(&existing).Error
		if err == nil {
			users[i] = existing
			continue
		}
		if err := database.DB.Create(&users[i]).Error; err != nil {
			log.Fatalf("Failed to seed user %s: %v", users[i].Username, err)
		}
		log.Printf("Created user %s (id=%d)", users[i].Username, users[i].ID)
	}

	convID, err := services.GetOrCreateConversation(users[0].ID, users[1].ID)
	if err != nil {
		log.Fatalf("Failed to create conversation: %v", err)
	}

	var count int64
	database.DB.Model(&models.Message{}).Where("conversation_id = ?", convID).Count(&count)
	if count == 0 {
		if _, err := services.SendMessage(convID, users[0].ID, "Hey! This is the seeded conversation."); err != nil {
			log.Fatalf("Failed to seed message: %v", err)
		}
		if _, err := services.SendMessage(convID, users[1].ID, "Works on my machine."); err != nil {
			log.Fatalf("Failed to seed message: %v", err)
		}
	}

	log.Printf("Done. Conversation %d between %s and %s ready.", convID, users[0].Username, users[1].Username)
}
