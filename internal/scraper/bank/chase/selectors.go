package chase

// Portal entry points. Paths are resolved against the base URL so tests can
// point the scraper at a local server.
const (
	DefaultBaseURL = "https://mobilebanking.chase.com"

	PathLogOn    = "/Public/Home/LogOn"
	PathAccounts = "/Secure/Accounts/"
)

// Form and control names
const (
	FormLogin = "auth_form"

	FieldUserID   = "auth_userId"
	FieldPassword = "auth_passwd"
	FieldOTP      = "auth_otp"

	FieldPaymentOption = "PaymentOptionId"
	FieldAmount        = "Amount"
	FieldDeliverByDate = "DeliverByDate"
	FieldMemo          = "Memo"

	ControlNext   = "Next"
	ControlSubmit = "Submit"

	TransferFormAction = "/Secure/Transfer/Transfer/EnterDetails"
)

// CSS Selectors
const (
	SelectorLoginForm     = "#" + FormLogin
	SelectorCoaching      = ".coaching"
	SelectorPaymentOption = "#" + FieldPaymentOption
)

// Text and URL markers. Any of these drifting on the portal side breaks the
// scraper, so each one is pinned by a test.
const (
	MarkerOTPActivation = "EnterActivationCode"
	LinkAlreadyHaveCode = "Already Have"

	AnnouncementSuffix = "/Announcement"

	LabelTransferMoney     = "Transfer Money"
	LabelPayCreditCard     = "Pay Credit Card"
	HrefRewardsDetails     = "CreditCardRewardDetails"
	LinkNextPage           = "Next"
	LabelTotalPayment      = "Total payment amount:"
	LabelStatementBalance  = "Statement balance"
	LabelCurrentBalance    = "Current Balance"
	LabelMinimumPayment    = "Minimum payment"
	LabelOtherAmount       = "Other amount"
	MarkerTransferVerify   = "Verify"
	MarkerPaymentComplete  = "Step 4 of 4"
	MarkerTransferComplete = "Step 5 of 5"
)

// Attribute keys the scraper fills in from marker rows
const (
	AttrTransferFromURL   = "transfer_from_url"
	AttrPaymentURL        = "payment_url"
	AttrRewardsProgram    = "rewards_program"
	AttrRewardsProgramURL = "rewards_program_url"
	AttrAvailableCredit   = "available_credit"
)
