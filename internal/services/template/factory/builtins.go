package factory

var (
	regionsNA     = []string{"US", "CA"}
	regionsGlobal = []string{"US", "CA", "GB", "EU", "IN", "AU"}
	currenciesNA  = []string{"USD", "CAD"}
	currenciesAll = []string{"USD", "CAD", "GBP", "EUR", "INR", "AUD"}
	languagesEN   = []string{"en"}
	languagesMany = []string{"en", "es", "fr", "hi"}
)

// intakeFlow is the node/edge skeleton shared by most industries: capture a
// lead, qualify it, notify staff and follow up.
func intakeFlow(qualifyRule string) ([]Node, []Edge) {
	nodes := []Node{
		{ID: "intake", Type: "trigger.form", Name: "Intake Form Submitted"},
		{ID: "qualify", Type: "logic.condition", Name: "Qualify Lead", Parameters: map[string]interface{}{"rule": qualifyRule}},
		{ID: "crm", Type: "action.crm.upsert", Name: "Create CRM Record"},
		{ID: "notify", Type: "action.notify", Name: "Notify Team", Parameters: map[string]interface{}{"channels": []string{"email", "sms"}}},
		{ID: "followup", Type: "action.schedule", Name: "Schedule Follow-up", Parameters: map[string]interface{}{"delayHours": 24}},
		{ID: "nurture", Type: "action.email.sequence", Name: "Add To Nurture Sequence"},
	}
	edges := []Edge{
		{From: "intake", To: "qualify"},
		{From: "qualify", To: "crm", Condition: "qualified"},
		{From: "qualify", To: "nurture", Condition: "not_qualified"},
		{From: "crm", To: "notify"},
		{From: "notify", To: "followup"},
	}
	return nodes, edges
}

func registerBuiltIns(c *Catalog) {
	// Consulting
	nodes, edges := intakeFlow("budget >= minimum_engagement")
	c.register(Blueprint{
		Category:            CategoryConsulting,
		Name:                "Consulting Client Onboarding",
		Description:         "Qualify inbound consulting leads, book discovery calls and issue proposals",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesMany,
	}, content{
		FormFields: []FormField{
			{Key: "company_name", Label: "Company Name", Type: FieldTypeString, Required: true},
			{Key: "contact_email", Label: "Contact Email", Type: FieldTypeEmail, Required: true},
			{Key: "service_area", Label: "Service Area", Type: FieldTypeSelect, Required: true, Options: []Option{
				{Label: "Strategy", Value: "strategy"},
				{Label: "Operations", Value: "operations"},
				{Label: "Technology", Value: "technology"},
				{Label: "Finance", Value: "finance"},
			}},
			{Key: "budget", Label: "Estimated Budget", Type: FieldTypeCurrency, Required: true, Validation: &Validation{Min: floatPtr(0)}},
			{Key: "timeline_weeks", Label: "Timeline (weeks)", Type: FieldTypeNumber, DefaultValue: 12, Validation: &Validation{Min: floatPtr(1), Max: floatPtr(104)}},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "min-engagement", When: "budget < minimum_engagement", Then: "route_to_nurture", Threshold: "5000"},
			{ID: "proposal-sla", When: "qualified", Then: "send_proposal_within_hours", Threshold: "48"},
		},
	})

	// Healthcare
	nodes, edges = intakeFlow("insurance_verified == true")
	c.register(Blueprint{
		Category:            CategoryHealthcare,
		Name:                "Patient Appointment Intake",
		Description:         "Collect patient details, verify insurance and confirm appointments",
		SupportedRegions:    regionsNA,
		SupportedCurrencies: currenciesNA,
		SupportedLanguages:  []string{"en", "es"},
	}, content{
		FormFields: []FormField{
			{Key: "patient_name", Label: "Patient Name", Type: FieldTypeString, Required: true},
			{Key: "date_of_birth", Label: "Date of Birth", Type: FieldTypeDate, Required: true},
			{Key: "phone", Label: "Phone", Type: FieldTypePhone, Required: true},
			{Key: "insurance_provider", Label: "Insurance Provider", Type: FieldTypeString},
			{Key: "visit_reason", Label: "Reason for Visit", Type: FieldTypeString, Required: true, Validation: &Validation{MaxLength: intPtr(500)}},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "reminder", When: "appointment_booked", Then: "send_reminder_before_hours", Threshold: "24"},
			{ID: "no-phi-in-sms", When: "channel == sms", Then: "redact_clinical_fields"},
		},
	})

	// Real estate
	nodes, edges = intakeFlow("pre_approved == true")
	c.register(Blueprint{
		Category:            CategoryRealEstate,
		Name:                "Property Inquiry Pipeline",
		Description:         "Route buyer and renter inquiries to agents and schedule viewings",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesEN,
	}, content{
		FormFields: []FormField{
			{Key: "full_name", Label: "Full Name", Type: FieldTypeString, Required: true},
			{Key: "email", Label: "Email", Type: FieldTypeEmail, Required: true},
			{Key: "intent", Label: "Looking To", Type: FieldTypeSelect, Required: true, Options: []Option{
				{Label: "Buy", Value: "buy"},
				{Label: "Rent", Value: "rent"},
				{Label: "Sell", Value: "sell"},
			}},
			{Key: "max_price", Label: "Maximum Price", Type: FieldTypeCurrency},
			{Key: "pre_approved", Label: "Mortgage Pre-approved", Type: FieldTypeBoolean, DefaultValue: false},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "agent-rotation", When: "qualified", Then: "assign_round_robin"},
			{ID: "viewing-window", When: "viewing_requested", Then: "offer_slots_within_days", Threshold: "3"},
		},
	})

	// E-commerce
	c.register(Blueprint{
		Category:            CategoryEcommerce,
		Name:                "Order Fulfilment and Recovery",
		Description:         "Confirm orders, track shipments and recover abandoned carts",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesMany,
	}, content{
		FormFields: []FormField{
			{Key: "store_url", Label: "Store URL", Type: FieldTypeString, Required: true, Validation: &Validation{Pattern: "^https?://"}},
			{Key: "support_email", Label: "Support Email", Type: FieldTypeEmail, Required: true},
			{Key: "cart_recovery_delay", Label: "Cart Recovery Delay (hours)", Type: FieldTypeNumber, DefaultValue: 4, Validation: &Validation{Min: floatPtr(1), Max: floatPtr(72)}},
		},
		Nodes: []Node{
			{ID: "order", Type: "trigger.webhook", Name: "Order Placed"},
			{ID: "confirm", Type: "action.email", Name: "Send Order Confirmation"},
			{ID: "ship", Type: "action.shipping.track", Name: "Track Shipment"},
			{ID: "cart", Type: "trigger.webhook", Name: "Cart Abandoned"},
			{ID: "recover", Type: "action.email", Name: "Send Recovery Email"},
		},
		Edges: []Edge{
			{From: "order", To: "confirm"},
			{From: "confirm", To: "ship"},
			{From: "cart", To: "recover"},
		},
		BusinessRules: []BusinessRule{
			{ID: "recovery-discount", When: "cart_value > threshold", Then: "attach_discount_code", Threshold: "100"},
		},
	})

	// Restaurant
	c.register(Blueprint{
		Category:            CategoryRestaurant,
		Name:                "Reservations and Waitlist",
		Description:         "Take reservations, manage the waitlist and request reviews",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesMany,
	}, content{
		FormFields: []FormField{
			{Key: "guest_name", Label: "Guest Name", Type: FieldTypeString, Required: true},
			{Key: "phone", Label: "Phone", Type: FieldTypePhone, Required: true},
			{Key: "party_size", Label: "Party Size", Type: FieldTypeNumber, Required: true, Validation: &Validation{Min: floatPtr(1), Max: floatPtr(20)}},
			{Key: "reservation_date", Label: "Date", Type: FieldTypeDate, Required: true},
		},
		Nodes: []Node{
			{ID: "booking", Type: "trigger.form", Name: "Reservation Requested"},
			{ID: "capacity", Type: "logic.condition", Name: "Check Capacity"},
			{ID: "confirm", Type: "action.sms", Name: "Confirm Reservation"},
			{ID: "waitlist", Type: "action.queue", Name: "Add To Waitlist"},
			{ID: "review", Type: "action.schedule", Name: "Request Review", Parameters: map[string]interface{}{"delayHours": 3}},
		},
		Edges: []Edge{
			{From: "booking", To: "capacity"},
			{From: "capacity", To: "confirm", Condition: "available"},
			{From: "capacity", To: "waitlist", Condition: "full"},
			{From: "confirm", To: "review"},
		},
		BusinessRules: []BusinessRule{
			{ID: "large-party-deposit", When: "party_size >= threshold", Then: "require_deposit", Threshold: "8"},
		},
	})

	// Fitness
	nodes, edges = intakeFlow("trial_requested == true")
	c.register(Blueprint{
		Category:            CategoryFitness,
		Name:                "Membership Trial Conversion",
		Description:         "Book trial sessions and convert trial members to paid plans",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesEN,
	}, content{
		FormFields: []FormField{
			{Key: "member_name", Label: "Name", Type: FieldTypeString, Required: true},
			{Key: "email", Label: "Email", Type: FieldTypeEmail, Required: true},
			{Key: "goal", Label: "Primary Goal", Type: FieldTypeSelect, Options: []Option{
				{Label: "Weight Loss", Value: "weight_loss"},
				{Label: "Strength", Value: "strength"},
				{Label: "Endurance", Value: "endurance"},
			}},
			{Key: "trial_requested", Label: "Book Free Trial", Type: FieldTypeBoolean, DefaultValue: true},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "trial-expiry", When: "trial_days_elapsed >= threshold", Then: "send_conversion_offer", Threshold: "7"},
		},
	})

	// Education
	nodes, edges = intakeFlow("application_complete == true")
	c.register(Blueprint{
		Category:            CategoryEducation,
		Name:                "Student Enrollment",
		Description:         "Capture applications, collect documents and confirm enrollment",
		SupportedRegions:    regionsGlobal,
		SupportedCurrencies: currenciesAll,
		SupportedLanguages:  languagesMany,
	}, content{
		FormFields: []FormField{
			{Key: "student_name", Label: "Student Name", Type: FieldTypeString, Required: true},
			{Key: "guardian_email", Label: "Guardian Email", Type: FieldTypeEmail},
			{Key: "program", Label: "Program", Type: FieldTypeString, Required: true},
			{Key: "start_date", Label: "Preferred Start Date", Type: FieldTypeDate},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "document-reminder", When: "documents_missing", Then: "remind_every_days", Threshold: "2"},
		},
	})

	// Legal
	nodes, edges = intakeFlow("conflict_check_passed == true")
	c.register(Blueprint{
		Category:            CategoryLegal,
		Name:                "Legal Matter Intake",
		Description:         "Screen prospective clients, run conflict checks and open matters",
		SupportedRegions:    regionsNA,
		SupportedCurrencies: currenciesNA,
		SupportedLanguages:  languagesEN,
	}, content{
		FormFields: []FormField{
			{Key: "client_name", Label: "Client Name", Type: FieldTypeString, Required: true},
			{Key: "opposing_party", Label: "Opposing Party", Type: FieldTypeString},
			{Key: "practice_area", Label: "Practice Area", Type: FieldTypeSelect, Required: true, Options: []Option{
				{Label: "Family", Value: "family"},
				{Label: "Corporate", Value: "corporate"},
				{Label: "Litigation", Value: "litigation"},
				{Label: "Immigration", Value: "immigration"},
			}},
			{Key: "matter_summary", Label: "Matter Summary", Type: FieldTypeString, Required: true, Validation: &Validation{MaxLength: intPtr(2000)}},
		},
		Nodes: nodes,
		Edges: edges,
		BusinessRules: []BusinessRule{
			{ID: "conflict-check", When: "opposing_party != ''", Then: "run_conflict_check"},
			{ID: "engagement-letter", When: "qualified", Then: "send_engagement_letter"},
		},
	})
}
