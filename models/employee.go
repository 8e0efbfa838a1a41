package models

import (
	"context"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
)

// Employee is storage only: payroll and settlement arithmetic happen in an
// external calculator that reads this collection.
type Employee struct {
	ID         string    `json:"id"`
	WorkCenter string    `json:"work_center"`
	Rut        string    `json:"rut"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	EntryDate  time.Time `json:"entry_date"`
	Active     *bool     `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e Employee) GetWorkCenter() string { return e.WorkCenter }

type NewEmployee struct {
	Rut       string    `json:"rut" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Role      string    `json:"role"`
	EntryDate time.Time `json:"entry_date"`
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	employee := Employee{
		ID:         newId(),
		WorkCenter: workCenter,
		Rut:        input.Rut,
		Name:       input.Name,
		Role:       input.Role,
		EntryDate:  input.EntryDate,
		Active:     utils.NewTrue(),
		CreatedAt:  time.Now(),
	}

	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		employees, err := LoadCollection[Employee](get, CollectionEmployees)
		if err != nil {
			return err
		}
		employees = append(employees, employee)
		return SaveCollection(put, CollectionEmployees, employees)
	})
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

func ListEmployees(ctx context.Context) ([]Employee, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	employees, err := ListCollection[Employee](CollectionEmployees)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(employees, workCenter), nil
}
