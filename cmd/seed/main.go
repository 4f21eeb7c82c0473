package main

import (
	"fmt"

	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func mustMoney(amount string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(amount))
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库连接失败: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("初始化默认管理员失败: %v", err)
	}

	// 上游接口配置
	apiConfigs := []models.ApiConfig{
		{
			APIName:        "运营商二要素核验",
			APICode:        "YYSY09VM",
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			CostPrice:      mustMoney("0.30"),
			AdminCostPrice: mustMoney("0.30"),
			IsActive:       true,
			ParamConfig: models.JSON(map[string]interface{}{
				"required_params": []interface{}{"name", "id_card"},
			}),
		},
		{
			APIName:        "运营商三要素核验",
			APICode:        "YYSY6F2E",
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			CostPrice:      mustMoney("0.50"),
			AdminCostPrice: mustMoney("0.50"),
			IsActive:       true,
			RequiresMobile: true,
			ParamConfig: models.JSON(map[string]interface{}{
				"required_params": []interface{}{"name", "id_card", "mobile"},
			}),
		},
		{
			APIName:        "个人司法涉诉",
			APICode:        "JRZQ8203",
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			CostPrice:      mustMoney("2.00"),
			AdminCostPrice: mustMoney("2.00"),
			IsActive:       true,
			ParamConfig: models.JSON(map[string]interface{}{
				"required_params": []interface{}{"name", "id_card"},
			}),
		},
		{
			APIName:        "借贷风险评估",
			APICode:        "FLXG3D56",
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			CostPrice:      mustMoney("3.00"),
			AdminCostPrice: mustMoney("3.00"),
			IsActive:       true,
			RequiresMobile: true,
			ParamConfig: models.JSON(map[string]interface{}{
				"required_params": []interface{}{"name", "id_card", "mobile"},
			}),
		},
	}

	apiIDs := map[string]uint{}
	for _, ac := range apiConfigs {
		var existing models.ApiConfig
		if err := models.DB.Where("api_code = ?", ac.APICode).First(&existing).Error; err != nil {
			if err := models.DB.Create(&ac).Error; err != nil {
				stdLog.Printf("创建上游接口配置 %s 失败: %v", ac.APICode, err)
				continue
			}
			stdLog.Printf("已创建上游接口配置: %s", ac.APICode)
			apiIDs[ac.APICode] = ac.ID
		} else {
			stdLog.Printf("上游接口配置已存在: %s", ac.APICode)
			apiIDs[ac.APICode] = existing.ID
		}
	}

	// 查询产品配置
	queryConfigs := []models.QueryConfig{
		{
			ConfigName:     "基础二要素核验",
			Category:       constants.QueryCategoryTwoFactor,
			CustomerPrice:  mustMoney("9.90"),
			APICombination: models.IntArray{apiIDs["YYSY09VM"]},
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			IsActive:       true,
		},
		{
			ConfigName:     "三要素综合报告",
			Category:       constants.QueryCategoryThreeFactor,
			CustomerPrice:  mustMoney("29.90"),
			APICombination: models.IntArray{apiIDs["YYSY6F2E"], apiIDs["JRZQ8203"], apiIDs["FLXG3D56"]},
			OwnerID:        1,
			OwnerType:      constants.OwnerTypeAdmin,
			IsActive:       true,
		},
	}

	for _, qc := range queryConfigs {
		var existing models.QueryConfig
		if err := models.DB.Where("config_name = ? AND owner_id = ? AND owner_type = ?", qc.ConfigName, qc.OwnerID, qc.OwnerType).First(&existing).Error; err != nil {
			if err := models.DB.Create(&qc).Error; err != nil {
				stdLog.Printf("创建查询配置 %s 失败: %v", qc.ConfigName, err)
			} else {
				stdLog.Printf("已创建查询配置: %s", qc.ConfigName)
			}
		} else {
			stdLog.Printf("查询配置已存在: %s", qc.ConfigName)
		}
	}

	// 演示代理
	var agent models.AgentUser
	if err := models.DB.Where("username = ?", "agent_demo").First(&agent).Error; err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte("agent123456"), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Fatalf("生成代理密码哈希失败: %v", err)
		}
		agent = models.AgentUser{
			Username:                "agent_demo",
			PasswordHash:            string(hash),
			DomainSuffix:            "demo",
			PersonalQueryPrice:      mustMoney("19.90"),
			EnterpriseQueryMinPrice: mustMoney("49.90"),
		}
		if err := models.DB.Create(&agent).Error; err != nil {
			stdLog.Printf("创建演示代理失败: %v", err)
		} else {
			stdLog.Printf("已创建演示代理: agent_demo / agent123456 (标识 demo)")
		}
	} else {
		stdLog.Println("演示代理已存在: agent_demo")
	}

	// 外部服务配置占位（凭证需在后台补全）
	externalConfigs := []models.ExternalApiConfig{
		{
			ConfigType: models.ExternalConfigTianyuan,
			ConfigName: "上游数据查询",
			Credentials: models.JSON(map[string]interface{}{
				"access_id":   "",
				"aes_key":     "",
				"rsa_pub_key": "",
				"gateway":     "https://api.tianyuanapi.com",
			}),
			OwnerID:   1,
			OwnerType: constants.OwnerTypeAdmin,
			IsActive:  false,
		},
		{
			ConfigType: models.ExternalConfigAliyunSms,
			ConfigName: "阿里云短信",
			Credentials: models.JSON(map[string]interface{}{
				"access_key_id":     "",
				"access_key_secret": "",
				"sign_name":         "",
				"template_code":     "",
			}),
			OwnerID:   1,
			OwnerType: constants.OwnerTypeAdmin,
			IsActive:  false,
		},
	}

	for _, ec := range externalConfigs {
		var existing models.ExternalApiConfig
		if err := models.DB.Where("config_type = ? AND owner_id = ? AND owner_type = ?", ec.ConfigType, ec.OwnerID, ec.OwnerType).First(&existing).Error; err != nil {
			if err := models.DB.Create(&ec).Error; err != nil {
				stdLog.Printf("创建外部服务配置 %s 失败: %v", ec.ConfigType, err)
			} else {
				stdLog.Printf("已创建外部服务配置: %s", ec.ConfigType)
			}
		} else {
			stdLog.Printf("外部服务配置已存在: %s", ec.ConfigType)
		}
	}

	fmt.Println("\n✅ 初始数据写入完成")
	fmt.Println("包含:")
	fmt.Println("- 默认管理员 (admin)")
	fmt.Println("- 4 个上游接口配置")
	fmt.Println("- 2 个查询产品配置")
	fmt.Println("- 1 个演示代理 (agent_demo)")
	fmt.Println("- 2 个外部服务配置占位")
}
