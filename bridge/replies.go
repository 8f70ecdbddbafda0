package bridge

import "fmt"

const (
	replyHelp     = "Welcome! Use /add <phone_number> to add a Snappfood account, or /check <phone_number> to fetch vouchers."
	replyFallback = "I'm not sure how to respond to that. Try /start"

	replyAddUsage   = "Please provide a phone number. Usage: /add 09123456789"
	replyCheckUsage = "Please provide a phone number. Usage: /check 09123456789"

	replyOTPSendFailed = "❌ Failed to send OTP. Please check the phone number and try again."
	replyNoTokenField  = "❌ Login failed: Could not find token in response."
)

func replyOTPPrompt(phone string) string {
	return fmt.Sprintf("An OTP has been sent to %s. Please reply with the code.", phone)
}

func replyLoginOK(phone string) string {
	return fmt.Sprintf("✅ Snappfood account for %s added successfully!", phone)
}

func replyLoginFailed(phone string) string {
	return fmt.Sprintf("❌ Login failed for %s. Please try again.", phone)
}

func replyLoginNotSaved(phone string) string {
	return fmt.Sprintf("❌ Login for %s succeeded but saving the account failed. Please try again.", phone)
}

func replyUnknownService(service string) string {
	return fmt.Sprintf("❌ Unknown service %q. Supported: snappfood.", service)
}

func replyAddFirst(phone string) string {
	return fmt.Sprintf("ℹ️ No token found for %s. Please add the account first.", phone)
}

func replyNoVouchers(phone string) string {
	return fmt.Sprintf("✅ Checked %s: No active vouchers found.", phone)
}

func replyNothingNew(phone string, seen int) string {
	return fmt.Sprintf("✅ Checked %s: No new vouchers; all %d already saved.", phone, seen)
}

func replyVouchersSaved(phone string, saved int) string {
	return fmt.Sprintf("✅ Checked %s: Found and saved %d new voucher(s).", phone, saved)
}

func replyFetchFailed(phone string) string {
	return fmt.Sprintf("❌ Failed to fetch vouchers for %s.", phone)
}
