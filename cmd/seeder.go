package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mekongagency/payment-hub/internal/core/datamodel/invoice"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample invoices for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := gorm.Open(gormpostgres.Open(cfg.Database.Source), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open db: %v", err)
		}

		if clearData {
			if err := db.Exec("DELETE FROM payment_transactions").Error; err != nil {
				log.Fatalf("failed to clear transactions: %v", err)
			}
			if err := db.Exec("DELETE FROM invoices").Error; err != nil {
				log.Fatalf("failed to clear invoices: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		clientID := "client-mekong-001"
		samples := []invoice.Invoice{
			{ID: "inv-001", InvoiceNumber: "INV-2024-001", ClientID: &clientID, AmountVND: 150000, Status: invoice.StatusPending},
			{ID: "inv-002", InvoiceNumber: "INV-2024-002", ClientID: &clientID, AmountVND: 2500000, Status: invoice.StatusPending},
			{ID: "inv-003", InvoiceNumber: "INV-2024-003", ClientID: &clientID, AmountVND: 9999, Status: invoice.StatusPending},
			{ID: "inv-004", InvoiceNumber: "INV-2024-004", ClientID: &clientID, AmountVND: 780000, Status: invoice.StatusOverdue},
		}

		for _, inv := range samples {
			var exists int64
			db.Model(&invoice.Invoice{}).Where("invoice_number = ?", inv.InvoiceNumber).Count(&exists)
			if exists > 0 {
				fmt.Println("invoice already exists:", inv.InvoiceNumber)
				continue
			}
			if err := db.Create(&inv).Error; err != nil {
				log.Fatalf("failed to insert invoice %s: %v", inv.InvoiceNumber, err)
			}
			fmt.Println("Seeded invoice:", inv.InvoiceNumber)
		}
	},
}
