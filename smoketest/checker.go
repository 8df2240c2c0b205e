package smoketest

import (
	"fmt"
	"time"

	"meditrackctl/model"
	"meditrackctl/plugins/supabase"
)

// RestClient is the slice of the backend client the smoke checks need.
type RestClient interface {
	Select(table string, q supabase.Query) (*supabase.RowsResult, error)
	Insert(table string, record any) (*supabase.RowsResult, error)
}

// Result is the outcome of one access check.
type Result struct {
	Name    string
	Status  int
	Passed  bool
	Skipped bool
	Detail  string
}

// Checker runs the four point-in-time access checks against the REST API
// using whatever credential its client carries. Each check is a single
// attempt: the point is diagnosis, not resilience, so there are no retries.
type Checker struct {
	Client RestClient

	Now func() time.Time // overridable for tests
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Run executes the checks in order, reporting each before the next begins.
// No check gates another except the final write, which needs a medication ID
// from the first read and is skipped outright when none was found.
func (c *Checker) Run() []Result {
	var results []Result

	medResult, firstMedID := c.readMedications()
	results = append(results, medResult)

	results = append(results, c.readInventory())
	results = append(results, c.readDispensingLogs())
	results = append(results, c.insertDispensingLog(firstMedID))

	return results
}

// AllPassed reports whether every non-skipped check succeeded.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Skipped && !r.Passed {
			return false
		}
	}
	return true
}

func (c *Checker) readMedications() (Result, string) {
	fmt.Println("TEST 1: Reading medications...")
	result := Result{Name: "read medications"}

	rows, err := c.Client.Select("medications", supabase.Query{
		Select: "id,name,strength",
		Limit:  5,
	})
	if err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result, ""
	}
	result.Status = rows.Status
	fmt.Printf("Status: %d\n", rows.Status)

	if !rows.OK() {
		result.Detail = string(rows.Body)
		fmt.Printf("❌ FAILED: %s\n\n", rows.Body)
		return result, ""
	}

	var medications []model.Medication
	if err := rows.Decode(&medications); err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result, ""
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("fetched %d medications", len(medications))
	fmt.Printf("✅ SUCCESS! Fetched %d medications\n", len(medications))

	firstMedID := ""
	if len(medications) > 0 {
		fmt.Printf("   First medication: %s %s\n", medications[0].Name, medications[0].Strength)
		firstMedID = medications[0].ID
	} else {
		fmt.Println("   ⚠️ No medications found")
	}
	fmt.Println()
	return result, firstMedID
}

func (c *Checker) readInventory() Result {
	fmt.Println("TEST 2: Reading inventory...")
	result := Result{Name: "read inventory"}

	rows, err := c.Client.Select("inventory", supabase.Query{
		Select: "medication_id,qty_units,lot_number",
		Limit:  5,
	})
	if err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result
	}
	result.Status = rows.Status
	fmt.Printf("Status: %d\n", rows.Status)

	if !rows.OK() {
		result.Detail = string(rows.Body)
		fmt.Printf("❌ FAILED: %s\n\n", rows.Body)
		return result
	}

	var inventory []model.InventoryItem
	if err := rows.Decode(&inventory); err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("fetched %d inventory items", len(inventory))
	fmt.Printf("✅ SUCCESS! Fetched %d inventory items\n", len(inventory))
	if len(inventory) > 0 {
		fmt.Printf("   First item: Lot %s, Qty: %d\n", inventory[0].LotNumber, inventory[0].QtyUnits)
	} else {
		fmt.Println("   ⚠️ No inventory found")
	}
	fmt.Println()
	return result
}

func (c *Checker) readDispensingLogs() Result {
	fmt.Println("TEST 3: Reading dispensing_logs...")
	result := Result{Name: "read dispensing logs"}

	rows, err := c.Client.Select("dispensing_logs", supabase.Query{
		Select: "id,patient_id,medication_name",
		Limit:  5,
		Order:  "created_at.desc",
	})
	if err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result
	}
	result.Status = rows.Status
	fmt.Printf("Status: %d\n", rows.Status)

	if !rows.OK() {
		result.Detail = string(rows.Body)
		fmt.Printf("❌ FAILED: %s\n\n", rows.Body)
		return result
	}

	var logs []model.DispensingLog
	if err := rows.Decode(&logs); err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("fetched %d dispensing logs", len(logs))
	fmt.Printf("✅ SUCCESS! Fetched %d dispensing logs\n", len(logs))
	if len(logs) > 0 {
		fmt.Printf("   Latest: %s for patient %s\n", logs[0].MedicationName, logs[0].PatientID)
	}
	fmt.Println()
	return result
}

// insertDispensingLog is the critical write check: it proves the credential
// can create dispensing records, which is the data flow the application
// depends on. The inserted record references the first fetched medication
// and is meant to be deleted manually afterwards.
func (c *Checker) insertDispensingLog(medicationID string) Result {
	result := Result{Name: "insert dispensing log"}

	if medicationID == "" {
		result.Skipped = true
		result.Detail = "no medications found to reference"
		fmt.Println("TEST 4: Skipped (no medications found)")
		fmt.Println()
		return result
	}

	fmt.Println("TEST 4: Inserting into dispensing_logs...")
	record := model.DispensingLog{
		LogDate:          c.now().Format("2006-01-02"),
		PatientID:        "TEST-999",
		MedicationID:     medicationID,
		MedicationName:   "Test Medication",
		DoseInstructions: "Test dose",
		LotNumber:        "TEST-LOT",
		ExpirationDate:   "2026-12-31",
		AmountDispensed:  "1 tab",
		PhysicianName:    "Test Physician",
		StudentName:      "Test Student",
		Notes:            "Access test record - safe to delete",
	}

	rows, err := c.Client.Insert("dispensing_logs", record)
	if err != nil {
		result.Detail = err.Error()
		fmt.Printf("❌ FAILED: %v\n\n", err)
		return result
	}
	result.Status = rows.Status
	fmt.Printf("Status: %d\n", rows.Status)

	if !rows.OK() {
		result.Detail = string(rows.Body)
		fmt.Printf("❌ FAILED: %s\n", rows.Body)
		fmt.Println()
		fmt.Println("⚠️ This is the problem! The frontend cannot create dispensing records.")
		fmt.Println("   Check the error message above for details.")
		return result
	}

	// return=representation yields the created rows as a JSON array
	var created []model.DispensingLog
	if err := rows.Decode(&created); err != nil || len(created) == 0 {
		result.Detail = "created, but response could not be decoded"
		fmt.Println("✅ SUCCESS! Dispensing record created (no representation returned)")
		result.Passed = true
		fmt.Println()
		return result
	}

	result.Passed = true
	result.Detail = created[0].ID
	fmt.Println("✅ SUCCESS! Dispensing record created")
	fmt.Printf("   Record ID: %s\n", created[0].ID)
	fmt.Println()
	return result
}
