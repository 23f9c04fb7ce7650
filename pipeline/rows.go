package pipeline

import "github.com/mmpvdesign/dsa-scrape/models"

// Row is the core export schema: the ten columns the original report used.
// Column order is the struct field order.
type Row struct {
	Link         string `csv:"Link" json:"link"`
	AppID        string `csv:"DSA AppId" json:"dsa_app_id"`
	Name         string `csv:"Project Name" json:"project_name"`
	Scope        string `csv:"Project Scope" json:"project_scope"`
	CertType     string `csv:"Project Cert Type" json:"project_cert_type"`
	Type         string `csv:"Project Type" json:"project_type"`
	FinalCost    string `csv:"Final Project Cost" json:"final_project_cost"`
	ApprovedDate string `csv:"Approved Date" json:"approved_date"`
	Address      string `csv:"Address" json:"address"`
	City         string `csv:"City" json:"city"`
}

// DetailedRow extends Row with every optional detail and indicator column.
type DetailedRow struct {
	Row
	PTN                  string `csv:"PTN" json:"ptn"`
	OfficeID             string `csv:"Office ID" json:"office_id"`
	ApplicationNumber    string `csv:"Application #" json:"application_number"`
	FileNumber           string `csv:"File #" json:"file_number"`
	PTNNumber            string `csv:"PTN #" json:"ptn_number"`
	OPSCNumber           string `csv:"OPSC #" json:"opsc_number"`
	Class                string `csv:"Project Class" json:"project_class"`
	SpecialType          string `csv:"Special Type" json:"special_type"`
	Increments           string `csv:"Number of Increments" json:"number_of_increments"`
	Zip                  string `csv:"Zip" json:"zip"`
	EstimatedAmount      string `csv:"Estimated Amount" json:"estimated_amount"`
	ContractedAmount     string `csv:"Contracted Amount" json:"contracted_amount"`
	ChangeDocumentAmount string `csv:"Change Document Amount" json:"change_document_amount"`
	AdjustmentDate1      string `csv:"Adjustment Date 1" json:"adjustment_date_1"`
	AdjustmentAmount1    string `csv:"Adjustment Amount 1" json:"adjustment_amount_1"`
	AdjustmentDate2      string `csv:"Adjustment Date 2" json:"adjustment_date_2"`
	AdjustmentAmount2    string `csv:"Adjustment Amount 2" json:"adjustment_amount_2"`
	ReceivedDate         string `csv:"Received Date" json:"received_date"`
	ApprovalExtDate      string `csv:"Approval Extension Date" json:"approval_extension_date"`
	ClosedDate           string `csv:"Closed Date" json:"closed_date"`
	SubmittalDate        string `csv:"Complete Submittal Date" json:"complete_submittal_date"`
	SB575                string `csv:"SB 575" json:"sb_575"`
	NewCampus            string `csv:"New Campus" json:"new_campus"`
	Modernization        string `csv:"Modernization" json:"modernization"`
	AutoFireDetection    string `csv:"Auto Fire Detection" json:"auto_fire_detection"`
	SprinklerSystem      string `csv:"Sprinkler System" json:"sprinkler_system"`
	AccessCompliance     string `csv:"Access Compliance" json:"access_compliance"`
	FireLifeSafety       string `csv:"Fire & Life Safety" json:"fire_life_safety"`
	StructuralSafety     string `csv:"Structural Safety" json:"structural_safety"`
	FieldReview          string `csv:"Field Review" json:"field_review"`
	CGSReview            string `csv:"CGS Review" json:"cgs_review"`
	HPS                  string `csv:"HPS" json:"hps"`
}

// RowFromRecord projects a merged record onto the core schema.
func RowFromRecord(r models.ProjectRecord) Row {
	return Row{
		Link:         r[models.FieldLink],
		AppID:        r[models.FieldAppID],
		Name:         r[models.FieldName],
		Scope:        r[models.FieldScope],
		CertType:     r[models.FieldCertType],
		Type:         r["Project Type"],
		FinalCost:    r["Final Project Cost"],
		ApprovedDate: r["Approved Date"],
		Address:      r["Address"],
		City:         r["City"],
	}
}

// DetailedRowFromRecord projects a merged record onto the full schema.
func DetailedRowFromRecord(r models.ProjectRecord) DetailedRow {
	return DetailedRow{
		Row:                  RowFromRecord(r),
		PTN:                  r[models.FieldPTN],
		OfficeID:             r["Office ID"],
		ApplicationNumber:    r["Application #"],
		FileNumber:           r["File #"],
		PTNNumber:            r["PTN #"],
		OPSCNumber:           r["OPSC #"],
		Class:                r["Project Class"],
		SpecialType:          r["Special Type"],
		Increments:           r["Number of Increments"],
		Zip:                  r["Zip"],
		EstimatedAmount:      r["Estimated Amount"],
		ContractedAmount:     r["Contracted Amount"],
		ChangeDocumentAmount: r["Change Document Amount"],
		AdjustmentDate1:      r["Adjustment Date 1"],
		AdjustmentAmount1:    r["Adjustment Amount 1"],
		AdjustmentDate2:      r["Adjustment Date 2"],
		AdjustmentAmount2:    r["Adjustment Amount 2"],
		ReceivedDate:         r["Received Date"],
		ApprovalExtDate:      r["Approval Extension Date"],
		ClosedDate:           r["Closed Date"],
		SubmittalDate:        r["Complete Submittal Date"],
		SB575:                r["SB 575"],
		NewCampus:            r["New Campus"],
		Modernization:        r["Modernization"],
		AutoFireDetection:    r["Auto Fire Detection"],
		SprinklerSystem:      r["Sprinkler System"],
		AccessCompliance:     r["Access Compliance"],
		FireLifeSafety:       r["Fire & Life Safety"],
		StructuralSafety:     r["Structural Safety"],
		FieldReview:          r["Field Review"],
		CGSReview:            r["CGS Review"],
		HPS:                  r["HPS"],
	}
}
