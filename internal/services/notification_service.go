// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/config"
	"github.com/s4li/talamala-v4-sub000/internal/models"
)

// NotificationService writes in-app notification rows and sends emails on
// top of them. Everything here is fire-and-forget from the settlement path:
// a failure is logged and never rolls back a committed settlement.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

func (s *NotificationService) SendWelcomeEmail(user *models.User) {
	tpl := s.getEmailTemplate("welcome")

	data := map[string]interface{}{
		"Username":     user.Username,
		"PlatformName": "Talamala",
	}
	body, err := s.renderTemplate(tpl.Body, data)
	if err != nil {
		logrus.WithError(err).Warn("Failed to render welcome email")
		return
	}
	if err := s.sendEmail(user.Email, tpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send welcome email")
	}
}

// NotifyOrderPaid tells the buyer their order settled.
func (s *NotificationService) NotifyOrderPaid(order *models.Order) {
	buyer, err := s.loadUser(order.CustomerID)
	if err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to load buyer for notification")
		return
	}

	s.createInApp(buyer.ID, "order_paid", "Order confirmed",
		fmt.Sprintf("Your order for %d item(s) is confirmed.", len(order.Lines)),
		models.JSONB{"order_id": order.ID.String(), "total": order.TotalAmount})

	tpl := s.getEmailTemplate("order_paid")
	data := map[string]interface{}{
		"Username": buyer.Username,
		"OrderID":  order.ID.String(),
		"Total":    order.TotalAmount,
		"Items":    len(order.Lines),
	}
	body, err := s.renderTemplate(tpl.Body, data)
	if err != nil {
		logrus.WithError(err).Warn("Failed to render order email")
		return
	}
	if err := s.sendEmail(buyer.Email, tpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to send order email")
	}
}

// NotifyPosSale records the counter sale for the dealer's in-app feed.
func (s *NotificationService) NotifyPosSale(order *models.Order, serialCode string) {
	s.createInApp(order.CustomerID, "pos_sale", "Counter sale completed",
		fmt.Sprintf("Bar %s sold at the counter.", serialCode),
		models.JSONB{"order_id": order.ID.String(), "serial_code": serialCode, "total": order.TotalAmount})
}

// NotifyBuyback tells the seller their bar was bought back and the money is
// in their wallet.
func (s *NotificationService) NotifyBuyback(buyback *models.Buyback) {
	seller, err := s.loadUser(buyback.SellerID)
	if err != nil {
		logrus.WithError(err).WithField("buyback_id", buyback.ID).Warn("Failed to load seller for notification")
		return
	}

	total := buyback.MetalValue + buyback.WageRefund
	s.createInApp(seller.ID, "buyback", "Buyback completed",
		fmt.Sprintf("Your bar was bought back for %d.", total),
		models.JSONB{"buyback_id": buyback.ID.String(), "metal_value": buyback.MetalValue, "wage_refund": buyback.WageRefund})

	tpl := s.getEmailTemplate("buyback")
	data := map[string]interface{}{
		"Username":   seller.Username,
		"MetalValue": buyback.MetalValue,
		"WageRefund": buyback.WageRefund,
		"Total":      total,
	}
	body, err := s.renderTemplate(tpl.Body, data)
	if err != nil {
		logrus.WithError(err).Warn("Failed to render buyback email")
		return
	}
	if err := s.sendEmail(seller.Email, tpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("buyback_id", buyback.ID).Warn("Failed to send buyback email")
	}
}

// NotifyWithdrawalDecision tells the owner their payout request was decided.
func (s *NotificationService) NotifyWithdrawalDecision(request *models.WithdrawalRequest) {
	owner, err := s.loadUser(request.OwnerID)
	if err != nil {
		logrus.WithError(err).WithField("request_id", request.ID).Warn("Failed to load owner for notification")
		return
	}

	title := "Withdrawal approved"
	if request.Status == models.WithdrawalStatusRejected {
		title = "Withdrawal rejected"
	}
	s.createInApp(owner.ID, "withdrawal_"+string(request.Status), title,
		fmt.Sprintf("Your withdrawal request for %d was %s.", request.Amount, request.Status),
		models.JSONB{"request_id": request.ID.String(), "amount": request.Amount})

	tpl := s.getEmailTemplate("withdrawal_decision")
	data := map[string]interface{}{
		"Username": owner.Username,
		"Amount":   request.Amount,
		"Decision": string(request.Status),
		"Note":     request.Note,
	}
	body, err := s.renderTemplate(tpl.Body, data)
	if err != nil {
		logrus.WithError(err).Warn("Failed to render withdrawal email")
		return
	}
	if err := s.sendEmail(owner.Email, tpl.Subject, body); err != nil {
		logrus.WithError(err).WithField("request_id", request.ID).Warn("Failed to send withdrawal email")
	}
}

// ListForUser pages a user's in-app notifications, newest first.
func (s *NotificationService) ListForUser(userID uuid.UUID, page, limit int) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	var notifications []models.Notification
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead stamps one notification as read by its owner.
func (s *NotificationService) MarkRead(notificationID, userID uuid.UUID) error {
	now := time.Now()
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFound("notification")
	}
	return nil
}

func (s *NotificationService) createInApp(userID uuid.UUID, notifType, title, message string, data models.JSONB) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to create notification")
	}
}

func (s *NotificationService) loadUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email delivery skipped")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	// In a real implementation, these would be loaded from files or database
	templates := map[string]EmailTemplate{
		"welcome": {
			Subject: "Welcome to Talamala",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Username}}!</h2>
	<p>Thank you for joining {{.PlatformName}}. Your wallet is ready.</p>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
		"order_paid": {
			Subject: "Order Confirmed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Order confirmed</h2>
	<p>Hello {{.Username}},</p>
	<p>Your order {{.OrderID}} for {{.Items}} item(s) is confirmed. Total charged: {{.Total}}.</p>
	<p>Best regards,<br>Talamala Team</p>
</body>
</html>`,
		},
		"buyback": {
			Subject: "Buyback Completed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Buyback completed</h2>
	<p>Hello {{.Username}},</p>
	<p>We bought your bar back. Metal value {{.MetalValue}} plus wage refund {{.WageRefund}} ({{.Total}} in total) has been credited to your wallet.</p>
	<p>Best regards,<br>Talamala Team</p>
</body>
</html>`,
		},
		"withdrawal_decision": {
			Subject: "Withdrawal Request Update",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Withdrawal {{.Decision}}</h2>
	<p>Hello {{.Username}},</p>
	<p>Your withdrawal request for {{.Amount}} was {{.Decision}}.</p>
	{{if .Note}}<p>Note: {{.Note}}</p>{{end}}
	<p>Best regards,<br>Talamala Team</p>
</body>
</html>`,
		},
	}

	if tpl, ok := templates[templateType]; ok {
		return tpl
	}
	return EmailTemplate{Subject: "Talamala", Body: "<html><body><p>{{.}}</p></body></html>"}
}
